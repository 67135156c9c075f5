// Package testutil provides shared test utilities for standbyprobe.
package testutil

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dwsmith1983/standbyprobe/internal/provider"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*MockProvider)(nil)

// MockProvider is an in-memory Provider implementation for testing.
type MockProvider struct {
	mu      sync.Mutex
	results map[string]types.ScenarioResult // key: "scenario:runID"
	alerts  []types.Alert

	// PutResultErr, when set, is returned by PutResult.
	PutResultErr error
}

// NewMockProvider creates a new in-memory mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{results: make(map[string]types.ScenarioResult)}
}

func resultKey(scenario, runID string) string { return scenario + ":" + runID }

func (m *MockProvider) PutResult(_ context.Context, result types.ScenarioResult) error {
	if m.PutResultErr != nil {
		return m.PutResultErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[resultKey(result.Scenario, result.RunID)] = result
	return nil
}

func (m *MockProvider) GetResult(_ context.Context, scenario, runID string) (*types.ScenarioResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[resultKey(scenario, runID)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockProvider) ListResults(_ context.Context, scenario string, limit int) ([]types.ScenarioResult, error) {
	return m.list(func(r types.ScenarioResult) bool { return r.Scenario == scenario }, limit), nil
}

func (m *MockProvider) ListAllResults(_ context.Context, limit int) ([]types.ScenarioResult, error) {
	return m.list(func(types.ScenarioResult) bool { return true }, limit), nil
}

func (m *MockProvider) list(match func(types.ScenarioResult) bool, limit int) []types.ScenarioResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.ScenarioResult
	for _, r := range m.results {
		if match(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b types.ScenarioResult) int { return cmp.Compare(b.RunID, a.RunID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MockProvider) PutAlert(_ context.Context, alert types.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *MockProvider) ListAlerts(_ context.Context, scenario string, limit int) ([]types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Alert
	for _, a := range slices.Backward(m.alerts) {
		if a.Scenario != scenario {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Results returns a snapshot of every stored result.
func (m *MockProvider) Results() []types.ScenarioResult {
	return m.list(func(types.ScenarioResult) bool { return true }, 0)
}

// Alerts returns a copy of every stored alert in insertion order.
func (m *MockProvider) Alerts() []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.alerts)
}

func (m *MockProvider) Start(context.Context) error { return nil }
func (m *MockProvider) Stop(context.Context) error  { return nil }
func (m *MockProvider) Ping(context.Context) error  { return nil }
