package session

import "errors"

var (
	// ErrNotFound indicates no session exists for the given token.
	ErrNotFound = errors.New("session: not found")

	// ErrDecode indicates a session key exists but its payload is corrupt.
	ErrDecode = errors.New("session: corrupt session record")

	// ErrStore indicates an I/O failure talking to redis. It is never
	// conflated with ErrNotFound.
	ErrStore = errors.New("session: store failure")

	// ErrStoreClosed indicates the store is shutting down and rejects new
	// operations.
	ErrStoreClosed = errors.New("session: store closed")
)
