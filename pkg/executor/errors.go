package executor

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExitError is returned when an external command did not finish with exit code 0.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
	Cause   error
}

func (err *ExitError) Error() string {
	msg := fmt.Sprintf("command '%s' failed with exit code %d", err.Command, err.Code)
	if err.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.Cause)
	}
	if err.Stderr != "" {
		msg = fmt.Sprintf("%s\n%s", msg, err.Stderr)
	}
	return msg
}

func (err *ExitError) Unwrap() error {
	return err.Cause
}

// ExitCode returns the exit code which has to be propagated to the caller of the process:
// 0 for nil, the code of the first failing external command, or 1 for any other error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
