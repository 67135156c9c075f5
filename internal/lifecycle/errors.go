package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

var (
	// ErrResourceNotFound reports that the tracked group or instance was absent
	// from a describe response. Callers treat it as transient.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrTimeoutExceeded reports that a wait budget ran out before the
	// target condition was observed.
	ErrTimeoutExceeded = errors.New("timeout exceeded")

	// ErrSequenceMismatch reports that an observed transition record differs
	// from the expected sequence.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrTerminalState reports that the instance settled in a terminal state
	// other than the one being waited for.
	ErrTerminalState = errors.New("instance reached terminal state")
)

// SequenceMismatchError carries both sequences of a failed verification.
type SequenceMismatchError struct {
	Observed []types.LifecycleState
	Expected []types.LifecycleState
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("lifecycle transitions did not match: observed %v, expected %v", e.Observed, e.Expected)
}

// Is makes errors.Is(err, ErrSequenceMismatch) succeed.
func (e *SequenceMismatchError) Is(target error) bool {
	return target == ErrSequenceMismatch
}
