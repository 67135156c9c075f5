package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

type fetchResult struct {
	state types.LifecycleState
	err   error
}

// scriptedFetcher replays results in order and then repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

func (f *scriptedFetcher) FetchState(_ context.Context, _, _ string) (types.LifecycleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].state, f.results[i].err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastPoller(f StateFetcher, maxWait time.Duration) *Poller {
	return NewPoller(f, WithInterval(time.Millisecond), WithMaxWait(maxWait))
}

func TestPoller_ReachesTarget(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{
		{state: types.StateInService},
		{state: types.StateEnteringStandby},
		{state: types.StateStandby},
	}}

	state, err := fastPoller(f, time.Second).WaitForState(context.Background(), "asg", "i-1", types.StateStandby)
	require.NoError(t, err)
	assert.Equal(t, types.StateStandby, state)
	assert.Equal(t, 3, f.Calls())
}

func TestPoller_ImmediateMatchFetchesOnce(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{state: types.StateStandby}}}

	_, err := fastPoller(f, time.Second).WaitForState(context.Background(), "asg", "i-1", types.StateStandby)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Calls())
}

func TestPoller_TimeoutExceeded(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{state: types.StateEnteringStandby}}}

	state, err := fastPoller(f, 20*time.Millisecond).WaitForState(context.Background(), "asg", "i-1", types.StateStandby)
	assert.ErrorIs(t, err, ErrTimeoutExceeded)
	assert.Equal(t, types.StateEnteringStandby, state)
	assert.GreaterOrEqual(t, f.Calls(), 1)
}

func TestPoller_BudgetSmallerThanInterval(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{state: types.StatePending}}}
	p := NewPoller(f, WithInterval(time.Hour), WithMaxWait(time.Millisecond))

	_, err := p.WaitForState(context.Background(), "asg", "i-1", types.StateInService)
	assert.ErrorIs(t, err, ErrTimeoutExceeded)
	assert.Equal(t, 1, f.Calls())
}

func TestPoller_AbsentInstanceIsRetried(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{
		{err: fmt.Errorf("describe: %w", ErrResourceNotFound)},
		{err: assert.AnError},
		{state: types.StateInService},
	}}

	state, err := fastPoller(f, time.Second).WaitForState(context.Background(), "asg", "i-1", types.StateInService)
	require.NoError(t, err)
	assert.Equal(t, types.StateInService, state)
	assert.Equal(t, 3, f.Calls())
}

func TestPoller_OpenCircuitFailsFast(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{err: gobreaker.ErrOpenState}}}

	_, err := fastPoller(f, time.Second).WaitForState(context.Background(), "asg", "i-1", types.StateInService)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 1, f.Calls())
}

func TestPoller_TerminalStateFailsFast(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{state: types.StateTerminated}}}

	state, err := fastPoller(f, time.Second).WaitForState(context.Background(), "asg", "i-1", types.StateStandby)
	assert.ErrorIs(t, err, ErrTerminalState)
	assert.Equal(t, types.StateTerminated, state)
}

func TestPoller_ContextCancelled(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{state: types.StatePending}}}
	p := NewPoller(f, WithInterval(time.Hour), WithMaxWait(24*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.WaitForState(ctx, "asg", "i-1", types.StateInService)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPoller_Defaults(t *testing.T) {
	p := NewPoller(&scriptedFetcher{}, WithInterval(0), WithMaxWait(-1), WithLogger(nil))
	assert.Equal(t, DefaultPollInterval, p.interval)
	assert.Equal(t, DefaultMaxWait, p.maxWait)
	assert.NotNil(t, p.logger)
}
