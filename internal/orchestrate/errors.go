package orchestrate

import "errors"

var (
	// ErrAlreadyDecided is returned when a reviewer decides an approval
	// that is no longer pending.
	ErrAlreadyDecided = errors.New("approval already decided")

	// ErrInvalidState is returned when the requested transition is not
	// legal from the entity's current state.
	ErrInvalidState = errors.New("invalid state for requested transition")

	// ErrPreconditionFailed is returned when a checkpoint gate or input
	// requirement is not satisfied.
	ErrPreconditionFailed = errors.New("precondition not satisfied")
)
