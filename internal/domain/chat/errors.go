package chat

import "errors"

var (
	// ErrEmptyInput is returned when a submission has no visible text.
	ErrEmptyInput = errors.New("message is empty")
	// ErrTurnInProgress is returned when a session already runs a turn.
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidMode is returned for an unknown mode or stream mode.
	ErrInvalidMode = errors.New("invalid mode")
)
