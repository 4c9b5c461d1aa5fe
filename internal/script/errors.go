package script

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMethod is returned when a step names a method the runner does
	// not implement. It is reported before any step runs.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrScriptNotFound is returned by Find when no script file exists.
	ErrScriptNotFound = errors.New("script not found")
)

// StepError reports a step that failed while running.
type StepError struct {
	Err    error
	Method string
	Index  int
	Code   int
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Method, e.Err)
	}
	return fmt.Sprintf("step %d (%s): exited with code %d", e.Index+1, e.Method, e.Code)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
