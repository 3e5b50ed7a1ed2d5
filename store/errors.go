package store

import "errors"

var (
	// ErrNotReady is returned by write operations issued before the store
	// handle finished initialization. Read operations never surface it:
	// they degrade to an empty result instead.
	ErrNotReady = errors.New("store not ready")

	// ErrNotFound is returned on a keyed read preceding a mutation when the
	// target record is missing.
	ErrNotFound = errors.New("record not found")

	// ErrRemoteFailure wraps any network or store level failure.
	ErrRemoteFailure = errors.New("remote store failure")

	// ErrTimeout is returned when a remote call exceeds the per-call
	// deadline.
	ErrTimeout = errors.New("remote store timeout")
)
