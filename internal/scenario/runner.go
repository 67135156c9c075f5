// Package scenario runs one standby automation test end to end: it
// provisions a role, a stack and a document, executes the automation while
// recording the tracked instance's lifecycle transitions, verifies them, and
// tears everything down again.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/standbyprobe/internal/automation"
	"github.com/dwsmith1983/standbyprobe/internal/cleanup"
	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/internal/metrics"
	"github.com/dwsmith1983/standbyprobe/internal/provider"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

const tracerName = "github.com/dwsmith1983/standbyprobe/internal/scenario"

// Stack output and automation parameter names shared with the template and
// the documents under test.
const (
	outputGroupName = "ASGName"

	paramAMI          = "AMI"
	paramSubnets      = "Subnets"
	paramInstanceType = "InstanceType"

	paramLambdaRole     = "LambdaRoleArn"
	paramInstanceID     = "InstanceId"
	paramAssumeRole     = "AutomationAssumeRole"
	healthyInstanceGoal = 1
)

// Deps are the cloud collaborators a Runner drives.
type Deps struct {
	Fleet      Fleet
	Automation Automation
	Stacks     Stacks
	Roles      Roles

	// Store and Alerts are optional.
	Store  provider.Provider
	Alerts Dispatcher
}

// Runner executes scenarios against one project configuration.
type Runner struct {
	deps     Deps
	project  *types.ProjectConfig
	timeouts config.Timeouts
	logger   *slog.Logger
	tracer   trace.Tracer
	newRunID func() string
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunIDs replaces the ULID generator.
func WithRunIDs(next func() string) Option {
	return func(r *Runner) { r.newRunID = next }
}

// New creates a Runner.
func New(project *types.ProjectConfig, deps Deps, opts ...Option) (*Runner, error) {
	if project == nil {
		return nil, errors.New("project config is required")
	}
	if deps.Fleet == nil || deps.Automation == nil || deps.Stacks == nil || deps.Roles == nil {
		return nil, errors.New("fleet, automation, stacks and roles are required")
	}
	timeouts, err := config.ParsePolling(project.Polling)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		deps:     deps,
		project:  project,
		timeouts: timeouts,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		newRunID: func() string { return ulid.Make().String() },
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// run carries the state of one scenario execution.
type run struct {
	sc       types.ScenarioConfig
	result   *types.ScenarioResult
	logger   *slog.Logger
	teardown *cleanup.Stack

	roleARN string
}

// Run executes sc and returns its result. The result is always non-nil
// once the scenario resolves; the error joins the run failure with any
// teardown failure. Teardown runs on every exit path, including
// cancellation.
func (r *Runner) Run(ctx context.Context, sc types.ScenarioConfig) (*types.ScenarioResult, error) {
	resolved, err := config.Resolve(r.project, sc)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}

	result := &types.ScenarioResult{
		RunID:     r.newRunID(),
		Scenario:  resolved.Name,
		Kind:      resolved.Kind,
		Expected:  types.ParseLifecycleStates(resolved.Expected),
		StartedAt: r.now(),
	}
	logger := r.logger.With("scenario", result.Scenario, "run_id", result.RunID)

	ctx, span := r.tracer.Start(ctx, "scenario.Run", trace.WithAttributes(
		attribute.String("scenario", result.Scenario),
		attribute.String("kind", string(result.Kind)),
		attribute.String("run_id", result.RunID),
	))
	defer span.End()

	rn := &run{sc: resolved, result: result, logger: logger, teardown: cleanup.NewStack(logger)}

	logger.Info("scenario started", "kind", resolved.Kind)
	runErr := r.execute(ctx, rn)
	cleanupErr := rn.teardown.Destroy(context.WithoutCancel(ctx))

	r.finish(ctx, rn, runErr, cleanupErr)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return result, errors.Join(runErr, cleanupErr)
}

func (r *Runner) execute(ctx context.Context, rn *run) error {
	sc := rn.sc

	var role string
	if err := r.step(ctx, "acquire role", func(ctx context.Context) error {
		caller, err := r.deps.Roles.CallerARN(ctx)
		if err != nil {
			return err
		}
		acquired, err := r.deps.Roles.Acquire(ctx, sc.RoleName, caller)
		if err != nil {
			return err
		}
		role = acquired.Name
		rn.roleARN = acquired.ARN
		rn.teardown.Push("iam role "+role, func(ctx context.Context) error {
			r.deps.Roles.Release(ctx, role)
			return nil
		})
		return nil
	}); err != nil {
		return err
	}

	var group string
	if err := r.step(ctx, "create stack", func(ctx context.Context) error {
		subnets, err := r.deps.Fleet.DefaultSubnets(ctx)
		if err != nil {
			return err
		}
		if len(subnets) == 0 {
			return errors.New("no default subnets found")
		}
		ids := make([]string, len(subnets))
		for i, s := range subnets {
			ids[i] = s.ID
		}

		rn.teardown.Push("cloudformation stack "+sc.StackName, func(ctx context.Context) error {
			return r.deps.Stacks.Delete(ctx, sc.StackName)
		})
		outputs, err := r.deps.Stacks.Create(ctx, sc.StackName, sc.TemplateFile, map[string]string{
			paramAMI:          r.project.AMI(),
			paramSubnets:      strings.Join(ids, ","),
			paramInstanceType: r.project.InstanceType,
		})
		if err != nil {
			return err
		}
		group = outputs[outputGroupName]
		if group == "" {
			return fmt.Errorf("stack %s has no %s output", sc.StackName, outputGroupName)
		}
		rn.result.GroupName = group
		return nil
	}); err != nil {
		return err
	}

	var instanceID string
	if err := r.step(ctx, "wait for instance", func(ctx context.Context) error {
		ids, err := r.deps.Fleet.WaitForHealthyInstances(ctx, group, healthyInstanceGoal, r.timeouts.InstanceMaxWait)
		if err != nil {
			return err
		}
		instanceID = ids[0]
		rn.result.InstanceID = instanceID
		return nil
	}); err != nil {
		return err
	}
	logger := rn.logger.With("group", group, "instance", instanceID)

	if sc.Kind == types.ScenarioExitStandby {
		if err := r.step(ctx, "enter standby", func(ctx context.Context) error {
			if err := r.deps.Fleet.EnterStandby(ctx, group, instanceID, true); err != nil {
				return err
			}
			_, err := r.poller(logger).WaitForState(ctx, group, instanceID, types.StateStandby)
			return err
		}); err != nil {
			return err
		}
	}

	if err := r.step(ctx, "register document", func(ctx context.Context) error {
		rn.teardown.Push("automation document "+sc.DocumentName, func(ctx context.Context) error {
			return r.deps.Automation.DeleteDocument(ctx, sc.DocumentName)
		})
		return r.deps.Automation.CreateDocument(ctx, sc.DocumentName, sc.DocumentFile, sc.DocumentFormat)
	}); err != nil {
		return err
	}

	if sc.Kind == types.ScenarioEnterStandby {
		rn.teardown.Push("exit standby "+instanceID, func(ctx context.Context) error {
			return r.restoreInService(ctx, group, instanceID)
		})
	}

	collector := lifecycle.NewCollector(instanceID, lifecycle.NewIgnoreSet(types.ParseLifecycleStates(sc.Ignore)...), nil, logger)
	observe := func(ctx context.Context) {
		snap, err := r.deps.Fleet.Snapshot(ctx, group)
		if err != nil {
			logger.Warn("group snapshot failed", "error", err)
			return
		}
		collector.Observe(snap)
	}

	var status automation.StatusResult
	err := r.step(ctx, "execute automation", func(ctx context.Context) error {
		observe(ctx)
		id, err := r.deps.Automation.Start(ctx, sc.DocumentName, map[string][]string{
			paramLambdaRole: {rn.roleARN},
			paramInstanceID: {instanceID},
			paramAssumeRole: {rn.roleARN},
		})
		if err != nil {
			return err
		}
		rn.result.ExecutionID = id
		logger.Info("automation started", "execution", id)

		status, err = r.deps.Automation.Wait(ctx, id, func(ctx context.Context, _ automation.StatusResult) {
			observe(ctx)
		})
		rn.result.ExecutionStatus = status.Status
		return err
	})

	observed := collector.Record().States()
	rn.result.Observed = observed
	logger.Info("observed transitions", "observed", observed, "expected", rn.result.Expected)
	if err != nil {
		return err
	}

	if err := lifecycle.Verify(observed, rn.result.Expected); err != nil {
		return err
	}
	if status.State != automation.CheckSucceeded {
		return &ExecutionError{
			ExecutionID: status.ExecutionID,
			Status:      status.Status,
			Message:     status.Message,
			Category:    status.FailureCategory,
		}
	}
	return nil
}

// restoreInService returns the instance to service if the automation left
// it in Standby.
func (r *Runner) restoreInService(ctx context.Context, group, instanceID string) error {
	state, err := r.deps.Fleet.FetchState(ctx, group, instanceID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrResourceNotFound) {
			return nil
		}
		return err
	}
	if state != types.StateStandby {
		return nil
	}
	return r.deps.Fleet.ExitStandby(ctx, group, instanceID)
}

func (r *Runner) poller(logger *slog.Logger) *lifecycle.Poller {
	return lifecycle.NewPoller(r.deps.Fleet,
		lifecycle.WithInterval(r.timeouts.StateInterval),
		lifecycle.WithMaxWait(r.timeouts.StateMaxWait),
		lifecycle.WithLogger(logger),
	)
}

// step runs fn inside a child span, prefixing any error with the step name.
func (r *Runner) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// finish completes the result, then persists, alerts and records metrics.
func (r *Runner) finish(ctx context.Context, rn *run, runErr, cleanupErr error) {
	res := rn.result
	res.FinishedAt = r.now()
	res.Passed = runErr == nil
	if runErr != nil {
		res.FailureCategory = categorize(runErr)
		res.FailureMessage = runErr.Error()
	}

	// Reporting must survive a cancelled run.
	ctx = context.WithoutCancel(ctx)

	attrs := metric.WithAttributes(
		attribute.String("scenario", res.Scenario),
		attribute.String("kind", string(res.Kind)),
	)
	metrics.ScenarioDuration.Record(ctx, res.Duration().Seconds(), attrs)
	if res.Passed {
		metrics.ScenariosPassed.Add(ctx, 1, attrs)
		rn.logger.Info("scenario passed", "duration", res.Duration())
	} else {
		metrics.ScenariosFailed.Add(ctx, 1, attrs)
		rn.logger.Error("scenario failed", "category", res.FailureCategory, "error", runErr)
	}

	if r.deps.Store != nil {
		if err := r.deps.Store.PutResult(ctx, *res); err != nil {
			rn.logger.Warn("failed to store result", "error", err)
		}
	}

	if r.deps.Alerts == nil {
		return
	}
	if !res.Passed {
		r.deps.Alerts.Dispatch(ctx, types.Alert{
			Level:    types.AlertLevelError,
			Scenario: res.Scenario,
			RunID:    res.RunID,
			Message:  res.FailureMessage,
			Details: map[string]interface{}{
				"category":    string(res.FailureCategory),
				"observed":    res.Observed,
				"expected":    res.Expected,
				"executionId": res.ExecutionID,
				"group":       res.GroupName,
				"instanceId":  res.InstanceID,
			},
			Timestamp: res.FinishedAt,
		})
	}
	if cleanupErr != nil {
		r.deps.Alerts.Dispatch(ctx, types.Alert{
			Level:     types.AlertLevelWarning,
			Scenario:  res.Scenario,
			RunID:     res.RunID,
			Message:   "teardown incomplete: " + cleanupErr.Error(),
			Timestamp: res.FinishedAt,
		})
	}
}
