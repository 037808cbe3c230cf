package helper

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn means no child process was created: interpreter or script
	// missing, or the OS refused to start it.
	ErrSpawn = errors.New("process spawn failure")
	// ErrExecution means the helper ran and exited non-zero.
	ErrExecution = errors.New("process execution failure")
	// ErrParse means the helper exited zero but stdout was not the expected
	// JSON document.
	ErrParse = errors.New("result parse failure")
)

type SpawnError struct {
	What string // "interpreter", "script" or the command that failed to start
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s not found", ErrSpawn, e.What)
	}
	return fmt.Sprintf("%s: %s %q: %v", ErrSpawn, e.What, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSpawn}
	}
	return []error{ErrSpawn, e.Err}
}

// ResultError is the error form of an unsuccessful Result.
type ResultError struct {
	Kind error
	Msg  string
}

func (e *ResultError) Error() string { return e.Msg }

func (e *ResultError) Unwrap() error { return e.Kind }
