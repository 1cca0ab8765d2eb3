package internal

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("object not found in store")

func ErrRetryable(f string, args ...any) error {
	return &RetryableError{msg: fmt.Sprintf(f, args...)}
}

// RetryableError wraps transient object store failures. The checkpoint
// mechanism is expected to retry the checkpoint that surfaced it.
type RetryableError struct {
	msg string
}

func (e RetryableError) Error() string {
	return e.msg
}

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}
