package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/standbyprobe/internal/metrics"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Poller defaults.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 60 * time.Second
)

// StateFetcher returns the current lifecycle state of one instance. It
// returns an error wrapping ErrResourceNotFound when the instance is absent.
type StateFetcher interface {
	FetchState(ctx context.Context, group, instanceID string) (types.LifecycleState, error)
}

// Poller blocks until an instance reaches a target lifecycle state.
type Poller struct {
	fetcher  StateFetcher
	interval time.Duration
	maxWait  time.Duration
	logger   *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the fixed delay between fetches.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxWait sets the overall wait budget.
func WithMaxWait(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.maxWait = d
		}
	}
}

// WithLogger sets the poller's logger.
func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller creates a Poller with the given options.
func NewPoller(fetcher StateFetcher, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultPollInterval,
		maxWait:  DefaultMaxWait,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WaitForState fetches the instance state immediately and then once per
// interval, returning as soon as it equals target. Missing instances and
// failed fetches are retried; an open describe circuit fails fast. When
// another fetch would overrun the wait budget it returns the last observed
// state and an error wrapping ErrTimeoutExceeded.
func (p *Poller) WaitForState(ctx context.Context, group, instanceID string, target types.LifecycleState) (types.LifecycleState, error) {
	start := time.Now()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var current types.LifecycleState
	for attempt := 1; ; attempt++ {
		state, err := p.fetcher.FetchState(ctx, group, instanceID)
		metrics.StatePolls.Add(ctx, 1)

		switch {
		case err == nil:
			current = state
			p.logger.Info("current instance state",
				"group", group, "instance", instanceID, "state", state, "target", target, "attempt", attempt)
			if state == target {
				return state, nil
			}
			if IsTerminal(state) {
				return state, fmt.Errorf("%w: %s is %s, wanted %s", ErrTerminalState, instanceID, state, target)
			}
		case errors.Is(err, ErrResourceNotFound):
			p.logger.Info("instance not visible yet", "group", group, "instance", instanceID, "attempt", attempt)
		case errors.Is(err, gobreaker.ErrOpenState):
			return current, fmt.Errorf("fetching state of %s: %w", instanceID, err)
		default:
			if ctx.Err() != nil {
				return current, ctx.Err()
			}
			p.logger.Warn("state fetch failed", "group", group, "instance", instanceID, "attempt", attempt, "error", err)
		}

		if time.Since(start)+p.interval > p.maxWait {
			metrics.StateWaitTimeouts.Add(ctx, 1)
			return current, fmt.Errorf("%w: %s did not reach %s within %s (last state %q)",
				ErrTimeoutExceeded, instanceID, target, p.maxWait, current)
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}
	}
}
