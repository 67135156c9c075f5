// Package cleanup tears down scenario resources in reverse creation order.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Func releases one resource.
type Func func(ctx context.Context) error

type entry struct {
	name string
	fn   Func
}

// Stack accumulates teardown steps. Destroy runs them last-in first-out so
// dependent resources go before the ones they were built on.
type Stack struct {
	mu      sync.Mutex
	entries []entry
	logger  *slog.Logger
}

// NewStack returns an empty Stack. A nil logger uses slog.Default().
func NewStack(logger *slog.Logger) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stack{logger: logger}
}

// Push registers a named teardown step.
func (s *Stack) Push(name string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{name: name, fn: fn})
}

// Len reports how many steps are pending.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Destroy runs every pending step in reverse order, returning all
// encountered errors joined. A failing step does not stop the rest. The
// stack is empty afterwards.
func (s *Stack) Destroy(ctx context.Context) error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	var errs error
	for _, e := range slices.Backward(entries) {
		s.logger.Info("cleaning up", "resource", e.name)
		if err := e.fn(ctx); err != nil {
			s.logger.Warn("cleanup step failed", "resource", e.name, "error", err)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errs
}
