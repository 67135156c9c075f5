package providertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/standbyprobe/internal/provider"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// TestResultPutGet validates that a stored result reads back intact.
func TestResultPutGet(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := types.ScenarioResult{
		RunID:           "01J0000000PUTGET000000000A",
		Scenario:        "conformance-putget",
		Kind:            types.ScenarioEnterStandby,
		GroupName:       "asg-1",
		InstanceID:      "i-0123456789abcdef0",
		ExecutionID:     "exec-1",
		ExecutionStatus: types.ExecutionSuccess,
		Observed:        []types.LifecycleState{types.StateInService, types.StateStandby},
		Expected:        []types.LifecycleState{types.StateInService, types.StateStandby},
		Passed:          true,
		StartedAt:       started,
		FinishedAt:      started.Add(4 * time.Minute),
	}
	require.NoError(t, prov.PutResult(ctx, want))

	got, err := prov.GetResult(ctx, want.Scenario, want.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.InstanceID, got.InstanceID)
	assert.Equal(t, want.ExecutionStatus, got.ExecutionStatus)
	assert.Equal(t, want.Observed, got.Observed)
	assert.True(t, got.Passed)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 4*time.Minute, got.Duration())
}

// TestResultMissing validates that an unknown run reads as nil without error.
func TestResultMissing(t *testing.T, prov provider.Provider) {
	got, err := prov.GetResult(context.Background(), "conformance-missing", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestResultListNewestFirst validates per-scenario ordering and limits.
func TestResultListNewestFirst(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	ids := []string{
		"01J0000000LIST0000000000A1",
		"01J0000000LIST0000000000B2",
		"01J0000000LIST0000000000C3",
	}
	for _, id := range ids {
		require.NoError(t, prov.PutResult(ctx, types.ScenarioResult{RunID: id, Scenario: "conformance-list"}))
	}
	require.NoError(t, prov.PutResult(ctx, types.ScenarioResult{RunID: "01J0000000LIST0000000000Z9", Scenario: "conformance-other"}))

	got, err := prov.ListResults(ctx, "conformance-list", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[2], got[0].RunID)
	assert.Equal(t, ids[0], got[2].RunID)

	limited, err := prov.ListResults(ctx, "conformance-list", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// TestResultListAll validates listing across scenarios.
func TestResultListAll(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	require.NoError(t, prov.PutResult(ctx, types.ScenarioResult{RunID: "01J0000000ALL00000000000A1", Scenario: "conformance-all-a"}))
	require.NoError(t, prov.PutResult(ctx, types.ScenarioResult{RunID: "01J0000000ALL00000000000B2", Scenario: "conformance-all-b"}))

	all, err := prov.ListAllResults(ctx, 100)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range all {
		seen[r.Scenario] = true
	}
	assert.True(t, seen["conformance-all-a"])
	assert.True(t, seen["conformance-all-b"])
}
