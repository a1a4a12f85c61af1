package client

import "errors"

var (
	// ErrMissingIdentity indicates Connect was called with an empty display name.
	ErrMissingIdentity = errors.New("missing identity")

	// ErrClosed indicates the controller has been shut down.
	ErrClosed = errors.New("controller closed")
)

// ValidationError reports user input rejected before any transport action.
// It matches its underlying sentinel with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
