package shell

import (
	"errors"
	"fmt"
)

// ExitError carries the exit code the shell finished with.
type ExitError struct {
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("shell exited with %d", e.ExitCode)
}

func NewExitError(exitCode int) *ExitError {
	return &ExitError{ExitCode: exitCode}
}

func IsExitError(err error) bool {
	_, ok := ExitCode(err)
	return ok
}

// ExitCode returns the exit code carried by err, if any.
func ExitCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode, true
	}

	return 0, false
}
