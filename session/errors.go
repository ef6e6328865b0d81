package session

import "errors"

var (
	// ErrValidation is a malformed request: bad lot size, missing memo.
	ErrValidation = errors.New("validation error")

	// ErrInvalidOperation is a well-formed request the session cannot
	// accept in its current state.
	ErrInvalidOperation = errors.New("invalid operation")

	ErrInsufficientCapital = errors.New("insufficient capital")
)
