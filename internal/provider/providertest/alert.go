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

// TestAlertPutList validates alert storage and retrieval.
func TestAlertPutList(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	now := time.Now()

	alerts := []types.Alert{
		{Level: types.AlertLevelError, Scenario: "conformance-alert", Message: "first alert", Timestamp: now.Add(-2 * time.Minute)},
		{Level: types.AlertLevelWarning, Scenario: "conformance-alert", Message: "second alert", Timestamp: now.Add(-1 * time.Minute)},
		{Level: types.AlertLevelInfo, Scenario: "conformance-alert-other", Message: "other scenario", Timestamp: now},
	}
	for _, a := range alerts {
		require.NoError(t, prov.PutAlert(ctx, a))
	}

	got, err := prov.ListAlerts(ctx, "conformance-alert", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second alert", got[0].Message)
	assert.Equal(t, "first alert", got[1].Message)
}
