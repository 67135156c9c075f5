// Package lifecycle observes Auto Scaling instance lifecycle states: it waits
// for target states, records filtered transition sequences and verifies them
// against expectations.
package lifecycle

import "github.com/dwsmith1983/standbyprobe/pkg/types"

// terminalStates are states an instance never leaves.
var terminalStates = map[types.LifecycleState]bool{
	types.StateTerminated: true,
	types.StateDetached:   true,
}

// IsTerminal returns true if the instance can no longer change state.
func IsTerminal(state types.LifecycleState) bool {
	return terminalStates[state]
}

// IgnoreSet is a set of lifecycle states that are never recorded.
type IgnoreSet map[types.LifecycleState]struct{}

// NewIgnoreSet builds an IgnoreSet from the given states.
func NewIgnoreSet(states ...types.LifecycleState) IgnoreSet {
	s := make(IgnoreSet, len(states))
	for _, st := range states {
		s[st] = struct{}{}
	}
	return s
}

// Contains reports whether state is ignored. A nil set ignores nothing.
func (s IgnoreSet) Contains(state types.LifecycleState) bool {
	_, ok := s[state]
	return ok
}
