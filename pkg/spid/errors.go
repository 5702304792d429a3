package spid

import (
	"errors"
	"fmt"
)

// ErrUnknownIdP indicates the requested or asserting identity provider is not
// present in the current metadata snapshot.
var ErrUnknownIdP = errors.New("spid: identity provider not in the registered set")

// ErrInvalidTransition indicates a login flow was driven out of order.
var ErrInvalidTransition = errors.New("spid: invalid login state transition")

// Validation failure reasons carried by AssertionValidationError.
const (
	ReasonMalformed        = "malformed response"
	ReasonInvalidSignature = "signature validation failed"
	ReasonExpired          = "assertion outside its validity window"
	ReasonAudienceMismatch = "assertion audience mismatch"
)

// AssertionValidationError reports a SAML response rejected during signature,
// timing, or audience validation. No session is created and the login is not
// retried automatically.
type AssertionValidationError struct {
	Reason string
	Err    error
}

func (e *AssertionValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spid: assertion rejected: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("spid: assertion rejected: %s", e.Reason)
}

func (e *AssertionValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is an assertion validation failure,
// as opposed to an unknown IdP or an internal error.
func IsValidationError(err error) bool {
	var ve *AssertionValidationError
	return errors.As(err, &ve)
}
