package assert

import (
	"fmt"
)

// True panics with the formatted message when condition does not hold. It is
// reserved for invariants the committer must never continue past.
func True(condition bool, errMsg string, arg ...any) {
	if !condition {
		panic(fmt.Sprintf("Assertion Failed: %s\n", fmt.Sprintf(errMsg, arg...)))
	}
}
