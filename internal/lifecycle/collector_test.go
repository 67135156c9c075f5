package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

const trackedID = "i-0abc"

func snap(states ...types.LifecycleState) []types.GroupSnapshot {
	out := make([]types.GroupSnapshot, 0, len(states))
	for _, s := range states {
		out = append(out, types.GroupSnapshot{
			GroupName: "asg-test",
			Instances: []types.InstanceSnapshot{
				{InstanceID: "i-other", LifecycleState: types.StatePending},
				{InstanceID: trackedID, LifecycleState: s},
			},
		})
	}
	return out
}

func collect(ignore IgnoreSet, snaps []types.GroupSnapshot) []types.LifecycleState {
	c := NewCollector(trackedID, ignore, nil, nil)
	for _, s := range snaps {
		c.Observe(s)
	}
	return c.Record().States()
}

func TestCollector_EnterStandbySequence(t *testing.T) {
	got := collect(
		NewIgnoreSet(types.StatePending),
		snap(types.StatePending, types.StatePending, types.StateInService, types.StateInService, types.StateStandby),
	)
	assert.Equal(t, []types.LifecycleState{types.StateInService, types.StateStandby}, got)
}

func TestCollector_ExitStandbySequence(t *testing.T) {
	got := collect(
		NewIgnoreSet(types.StateEnteringStandby, types.StatePending),
		snap(types.StatePending, types.StateEnteringStandby, types.StateStandby, types.StateStandby, types.StateInService),
	)
	assert.Equal(t, []types.LifecycleState{types.StateStandby, types.StateInService}, got)
}

func TestCollector_InstanceNeverPresent(t *testing.T) {
	c := NewCollector(trackedID, nil, nil, nil)
	for i := 0; i < 3; i++ {
		c.Observe(types.GroupSnapshot{
			GroupName: "asg-test",
			Instances: []types.InstanceSnapshot{{InstanceID: "i-other", LifecycleState: types.StateInService}},
		})
	}
	assert.Equal(t, 0, c.Record().Len())
	assert.Empty(t, c.Record().States())

	err := Verify(c.Record().States(), []types.LifecycleState{types.StateInService})
	assert.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestCollector_AbsentInstanceLeavesRecordUnchanged(t *testing.T) {
	c := NewCollector(trackedID, nil, nil, nil)
	c.Observe(snap(types.StateInService)[0])
	c.Observe(types.GroupSnapshot{GroupName: "asg-test"})
	c.Observe(snap(types.StateInService)[0])

	assert.Equal(t, []types.LifecycleState{types.StateInService}, c.Record().States())
}

func TestCollector_IdenticalSnapshotIsIdempotent(t *testing.T) {
	c := NewCollector(trackedID, nil, nil, nil)
	s := snap(types.StateStandby)[0]
	c.Observe(s)
	c.Observe(s)
	assert.Equal(t, 1, c.Record().Len())
}

func TestCollector_NoAdjacentDuplicatesAndNoIgnored(t *testing.T) {
	ignore := NewIgnoreSet(types.StatePending, types.StateEnteringStandby)
	got := collect(ignore, snap(
		types.StatePending,
		types.StateInService,
		types.StateEnteringStandby,
		types.StateInService,
		types.StateStandby,
		types.StatePending,
		types.StateStandby,
		types.StateInService,
	))

	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.NotEqual(t, got[i-1], got[i], "adjacent duplicate at %d", i)
	}
	for _, s := range got {
		assert.False(t, ignore.Contains(s), "ignored state %s recorded", s)
	}
	assert.Equal(t, []types.LifecycleState{types.StateInService, types.StateStandby, types.StateInService}, got)
}

func TestCollector_SharedRecordIsAppendOnly(t *testing.T) {
	rec := NewRecord()
	c := NewCollector(trackedID, nil, rec, nil)
	c.Observe(snap(types.StateInService)[0])

	first := rec.States()
	first[0] = types.StateTerminated // mutating the copy must not leak back

	c.Observe(snap(types.StateStandby)[0])
	assert.Equal(t, []types.LifecycleState{types.StateInService, types.StateStandby}, rec.States())
}

func TestRecord_Last(t *testing.T) {
	rec := NewRecord()
	_, ok := rec.Last()
	assert.False(t, ok)

	rec.appendIfChanged(types.StateStandby)
	last, ok := rec.Last()
	assert.True(t, ok)
	assert.Equal(t, types.StateStandby, last)
}

func TestIgnoreSet_Nil(t *testing.T) {
	var s IgnoreSet
	assert.False(t, s.Contains(types.StatePending))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.StateTerminated))
	assert.True(t, IsTerminal(types.StateDetached))
	assert.False(t, IsTerminal(types.StateStandby))
	assert.False(t, IsTerminal(types.StateInService))
}
