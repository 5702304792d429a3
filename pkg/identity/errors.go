package identity

import "errors"

var (
	// ErrTokenGeneration is returned when a mutually-unique token bundle
	// could not be produced within the bounded number of attempts.
	ErrTokenGeneration = errors.New("identity: token generation failed")

	// ErrMissingFiscalNumber is returned when the assertion carried no
	// fiscal number attribute.
	ErrMissingFiscalNumber = errors.New("identity: missing fiscal number")

	// ErrMissingName is returned when the assertion carried no given name.
	ErrMissingName = errors.New("identity: missing name")

	// ErrMissingFamilyName is returned when the assertion carried no
	// family name.
	ErrMissingFamilyName = errors.New("identity: missing family name")

	// ErrInvalidSpidLevel is returned when the authentication context of
	// the assertion is not a known SPID level.
	ErrInvalidSpidLevel = errors.New("identity: invalid spid level")
)
