// Package provider defines the storage backend for scenario history.
package provider

import (
	"context"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Provider persists scenario results and the alerts raised for them.
type Provider interface {
	// Scenario results, keyed by scenario name and run ID. Run IDs are
	// ULIDs, so lexical order is chronological order.
	PutResult(ctx context.Context, result types.ScenarioResult) error
	GetResult(ctx context.Context, scenario, runID string) (*types.ScenarioResult, error)
	ListResults(ctx context.Context, scenario string, limit int) ([]types.ScenarioResult, error)
	ListAllResults(ctx context.Context, limit int) ([]types.ScenarioResult, error)

	// Alert history
	PutAlert(ctx context.Context, alert types.Alert) error
	ListAlerts(ctx context.Context, scenario string, limit int) ([]types.Alert, error)

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
