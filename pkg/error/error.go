package error

import (
	"fmt"

	"github.com/pkg/errors"
)

// ContextClosedError is returned by blocking operations which were stopped because their context got closed.
type ContextClosedError struct {
	Operation string
	Message   string
}

func (m *ContextClosedError) Error() string {
	if m.Operation == "" {
		return m.Message
	}
	return fmt.Sprintf("%s: %s", m.Operation, m.Message)
}

func NewContextClosedError(operation, format string, args ...interface{}) *ContextClosedError {
	return &ContextClosedError{
		Operation: operation,
		Message:   fmt.Sprintf(format, args...),
	}
}

func IsContextClosedError(err error) bool {
	var cce *ContextClosedError
	return errors.As(err, &cce)
}
