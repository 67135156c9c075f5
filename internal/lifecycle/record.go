package lifecycle

import (
	"slices"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Record is the append-only transition history of one monitoring session.
// Entries are never modified or removed once written. A Record has a single
// writer and is not safe for concurrent use.
type Record struct {
	states []types.LifecycleState
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// Last returns the most recent entry, or false if the record is empty.
func (r *Record) Last() (types.LifecycleState, bool) {
	if len(r.states) == 0 {
		return "", false
	}
	return r.states[len(r.states)-1], true
}

// Len returns the number of recorded transitions.
func (r *Record) Len() int { return len(r.states) }

// States returns a copy of the recorded sequence.
func (r *Record) States() []types.LifecycleState {
	return slices.Clone(r.states)
}

// appendIfChanged appends state unless it equals the last entry.
func (r *Record) appendIfChanged(state types.LifecycleState) bool {
	if last, ok := r.Last(); ok && last == state {
		return false
	}
	r.states = append(r.states, state)
	return true
}
