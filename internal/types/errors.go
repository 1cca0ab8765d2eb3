package types

import (
	"fmt"
	"strings"
)

// ErrWarn collects problems that must be reported but must not fail the
// operation that produced them.
type ErrWarn struct {
	Warnings []string
}

func (e *ErrWarn) Error() string {
	return strings.Join(e.Warnings, "\n")
}

func (e *ErrWarn) Is(target error) bool {
	_, ok := target.(*ErrWarn)
	return ok
}

func (e *ErrWarn) Add(s string, arg ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(s, arg...))
}

func (e *ErrWarn) Merge(other *ErrWarn) {
	if other == nil {
		return
	}
	e.Warnings = append(e.Warnings, other.Warnings...)
}

func (e *ErrWarn) Len() int {
	return len(e.Warnings)
}

func (e *ErrWarn) If() error {
	if len(e.Warnings) > 0 {
		return e
	}
	return nil
}
