package session

import "errors"

var (
	ErrNotFound       = errors.New("session not found")
	ErrConflict       = errors.New("session was modified concurrently")
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
	ErrEmptyInput     = errors.New("message must not be empty")
	ErrInputTooLong   = errors.New("message is too long")
	ErrUnknownField   = errors.New("field is not answered by a clarification question")
	ErrInvalidValue   = errors.New("requirement value must be a non-empty string or a boolean")
)
