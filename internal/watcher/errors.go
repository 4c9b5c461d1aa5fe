package watcher

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpec is returned when a LaunchSpec fails validation.
	ErrInvalidSpec = errors.New("invalid launch spec")

	// ErrEmptyCommand is returned when a LaunchSpec has neither a command
	// line nor a shell string.
	ErrEmptyCommand = fmt.Errorf("%w: command is empty", ErrInvalidSpec)

	// ErrInvalidPattern is returned when a watch rule's pattern does not compile.
	ErrInvalidPattern = errors.New("invalid watch pattern")

	// ErrSpawn is returned when the child process cannot be started.
	ErrSpawn = errors.New("failed to spawn process")
)

// InvalidPatternError describes a watch rule whose pattern failed to compile.
// It matches ErrInvalidPattern with errors.Is.
type InvalidPatternError struct {
	Err     error
	Pattern string
	Index   int
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("watch rule %d: invalid pattern %q: %v", e.Index, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() []error {
	return []error{ErrInvalidPattern, e.Err}
}

// SpawnError describes a process that could not be started, typically because
// the executable was not found or is not executable. It matches ErrSpawn with
// errors.Is.
type SpawnError struct {
	Err     error
	Command string
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawn, e.Err}
}
