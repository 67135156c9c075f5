package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/internal/testutil"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

func init() {
	color.NoColor = true
}

func TestNewProvider_Unconfigured(t *testing.T) {
	p, err := newProvider(context.Background(), &types.ProjectConfig{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p != nil {
		t.Fatal("expected nil provider without a store config")
	}
}

func TestNewProvider_MissingTable(t *testing.T) {
	cfg := &types.ProjectConfig{Store: &types.DynamoDBConfig{}}
	if _, err := newProvider(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing table name")
	}
}

func TestSelectScenarios(t *testing.T) {
	cfg := config.Default("us-west-2", "ami-1")

	all, err := selectScenarios(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(all))
	}

	one, err := selectScenarios(cfg, []string{"exit-standby"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(one) != 1 || one[0].Kind != types.ScenarioExitStandby {
		t.Fatalf("expected exit-standby only, got %+v", one)
	}

	if _, err := selectScenarios(cfg, []string{"detach"}); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}

func TestFormatStates(t *testing.T) {
	if got := formatStates(nil); got != "(none)" {
		t.Errorf("expected (none), got %q", got)
	}
	got := formatStates([]types.LifecycleState{types.StateInService, types.StateStandby})
	if got != "InService -> Standby" {
		t.Errorf("unexpected format %q", got)
	}
}

func sampleResult(scenario, runID string, passed bool) types.ScenarioResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := types.ScenarioResult{
		RunID:      runID,
		Scenario:   scenario,
		GroupName:  "asg-1",
		InstanceID: "i-1",
		Observed:   []types.LifecycleState{types.StateInService, types.StateStandby},
		Expected:   []types.LifecycleState{types.StateInService, types.StateStandby},
		Passed:     passed,
		StartedAt:  start,
		FinishedAt: start.Add(9 * time.Minute),
	}
	if !passed {
		r.Observed = []types.LifecycleState{types.StateInService}
		r.FailureCategory = types.FailureMismatch
		r.FailureMessage = "lifecycle transitions did not match"
	}
	return r
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult("enter-standby", "01RUN", true)
	printResult(&buf, &res)

	out := buf.String()
	for _, want := range []string{"PASS enter-standby", "run 01RUN, 9m0s", "Group:     asg-1", "Observed:  InService -> Standby"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	res = sampleResult("enter-standby", "01RUN", false)
	printResult(&buf, &res)
	if !strings.Contains(buf.String(), "[SEQUENCE_MISMATCH] lifecycle transitions did not match") {
		t.Errorf("failure line missing:\n%s", buf.String())
	}
}

type fakeRunner struct {
	mu       sync.Mutex
	inFlight atomic.Int32
	peak     int32
	results  map[string]*types.ScenarioResult
	errs     map[string]error
}

func (f *fakeRunner) Run(_ context.Context, sc types.ScenarioConfig) (*types.ScenarioResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	f.peak = max(f.peak, n)
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return f.results[sc.Name], f.errs[sc.Name]
}

func TestExecuteAll(t *testing.T) {
	pass := sampleResult("a", "01A", true)
	fail := sampleResult("b", "01B", false)
	runner := &fakeRunner{
		results: map[string]*types.ScenarioResult{"a": &pass, "b": &fail},
		errs: map[string]error{
			"b": errors.New("mismatch"),
			"c": errors.New(`unknown kind "detach"`),
		},
	}
	scenarios := []types.ScenarioConfig{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	var buf bytes.Buffer
	err := executeAll(context.Background(), &buf, runner, scenarios, 2)
	if err == nil || err.Error() != "2 of 3 scenarios failed" {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.peak > 2 {
		t.Errorf("expected at most 2 concurrent runs, saw %d", runner.peak)
	}

	out := buf.String()
	if !strings.Contains(out, "PASS a") || !strings.Contains(out, "FAIL b") || !strings.Contains(out, `FAIL c`) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Index(out, "PASS a") > strings.Index(out, "FAIL b") {
		t.Errorf("results should print in configured order:\n%s", out)
	}
}

func TestExecuteAll_AllPass(t *testing.T) {
	pass := sampleResult("a", "01A", true)
	runner := &fakeRunner{results: map[string]*types.ScenarioResult{"a": &pass}}
	var buf bytes.Buffer
	if err := executeAll(context.Background(), &buf, runner, []types.ScenarioConfig{{Name: "a"}}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInit(t *testing.T) {
	t.Setenv(config.EnvRegion, "")
	t.Setenv(config.EnvPrefix, "")
	t.Setenv(config.EnvLogLevel, "")
	dir := filepath.Join(t.TempDir(), "project")
	var buf bytes.Buffer

	if err := runInit(&buf, dir, "eu-west-1", "ami-0abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sub := range []string{"templates", "documents"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", sub)
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("written config should load: %v", err)
	}
	if cfg.Region != "eu-west-1" || cfg.AMI() != "ami-0abc" {
		t.Errorf("unexpected config: region=%s ami=%s", cfg.Region, cfg.AMI())
	}

	if err := runInit(&buf, dir, "eu-west-1", "ami-0abc"); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestRunInit_NoAMIPrintsHint(t *testing.T) {
	var buf bytes.Buffer
	if err := runInit(&buf, t.TempDir(), "us-east-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "set amis.us-east-1") {
		t.Errorf("expected AMI hint:\n%s", buf.String())
	}
}

func TestShowResults(t *testing.T) {
	ctx := context.Background()
	prov := testutil.NewMockProvider()
	_ = prov.PutResult(ctx, sampleResult("enter-standby", "01A", true))
	_ = prov.PutResult(ctx, sampleResult("enter-standby", "01B", false))
	_ = prov.PutResult(ctx, sampleResult("exit-standby", "01C", true))

	var buf bytes.Buffer
	if err := showResults(ctx, &buf, prov, "enter-standby", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "01C") {
		t.Errorf("other scenario leaked into history:\n%s", out)
	}
	if strings.Index(out, "01B") > strings.Index(out, "01A") {
		t.Errorf("expected newest first:\n%s", out)
	}
	if !strings.Contains(out, "[SEQUENCE_MISMATCH]") {
		t.Errorf("expected failure detail:\n%s", out)
	}

	buf.Reset()
	if err := showResults(ctx, &buf, prov, "", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "01C") {
		t.Errorf("expected all scenarios:\n%s", buf.String())
	}
}

func TestShowResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := showResults(context.Background(), &buf, testutil.NewMockProvider(), "x", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No results recorded.") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestShowAlerts(t *testing.T) {
	ctx := context.Background()
	prov := testutil.NewMockProvider()
	_ = prov.PutAlert(ctx, types.Alert{Level: types.AlertLevelError, Scenario: "enter-standby", RunID: "01A", Message: "boom", Timestamp: time.Now()})

	var buf bytes.Buffer
	if err := showAlerts(ctx, &buf, prov, "", 5); err == nil {
		t.Fatal("expected error without scenario")
	}
	if err := showAlerts(ctx, &buf, prov, "enter-standby", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "error") || !strings.Contains(buf.String(), "boom") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

type fakeWaiter struct {
	state types.LifecycleState
	err   error
}

func (f fakeWaiter) WaitForState(context.Context, string, string, types.LifecycleState) (types.LifecycleState, error) {
	return f.state, f.err
}

func TestWaitState(t *testing.T) {
	var buf bytes.Buffer
	err := waitState(context.Background(), &buf, fakeWaiter{state: types.StateStandby}, "g", "i-1", types.StateStandby)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "i-1 is Standby") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	err = waitState(context.Background(), &buf, fakeWaiter{state: types.StatePending, err: lifecycle.ErrTimeoutExceeded}, "g", "i-1", types.StateStandby)
	if !errors.Is(err, lifecycle.ErrTimeoutExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !strings.Contains(buf.String(), `last state "Pending"`) {
		t.Errorf("unexpected output %q", buf.String())
	}
}
