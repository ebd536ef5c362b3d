package main

import (
	"context"
	"errors"
)

const (
	exitOK      = 0
	exitFailure = 1
	// exitUnsatisfied: the command finished but a session hit the retry
	// ceiling instead of a positive verdict.
	exitUnsatisfied = 2
	exitInterrupted = 130
)

// ExitCodeError attaches a process exit code to an error.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// exitCodeFor resolves the code main exits with. Untagged errors are
// failures unless they stem from cancellation.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) && exitErr.Code != exitOK {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return exitFailure
}
