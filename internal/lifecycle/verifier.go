package lifecycle

import (
	"slices"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Equal reports whether two sequences have the same length and order.
func Equal(observed, expected []types.LifecycleState) bool {
	return slices.Equal(observed, expected)
}

// Verify returns a *SequenceMismatchError unless observed equals expected
// exactly. An empty observation never matches a non-empty expectation.
func Verify(observed, expected []types.LifecycleState) error {
	if Equal(observed, expected) {
		return nil
	}
	return &SequenceMismatchError{
		Observed: slices.Clone(observed),
		Expected: slices.Clone(expected),
	}
}
