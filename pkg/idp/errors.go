package idp

import "errors"

var (
	// ErrMetadata covers metadata fetch and document-level parse failures.
	// Entity-level defects never surface as errors; they are skipped.
	ErrMetadata = errors.New("idp: metadata error")

	// ErrEmptySnapshot is returned when a load produced no usable
	// descriptor at all.
	ErrEmptySnapshot = errors.New("idp: no descriptors loaded")
)
