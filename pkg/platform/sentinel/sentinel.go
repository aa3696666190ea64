// Package sentinel holds the raw errors stores report infrastructure facts
// with. A store says what happened (the row is not there, the name collides,
// the risk is in the wrong status); the service decides what that means for
// the caller and translates into a coded domain error. Validation failures
// never come through here; those are born as domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound: the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a uniqueness or concurrent-modification collision.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState: the entity cannot accept this operation in its
	// current status.
	ErrInvalidState = errors.New("invalid state")
)
