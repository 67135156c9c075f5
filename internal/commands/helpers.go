// Package commands implements the CLI subcommands for the standbyprobe binary.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fatih/color"

	"github.com/dwsmith1983/standbyprobe/internal/alert"
	"github.com/dwsmith1983/standbyprobe/internal/asg"
	"github.com/dwsmith1983/standbyprobe/internal/automation"
	"github.com/dwsmith1983/standbyprobe/internal/cfnstack"
	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/iamrole"
	"github.com/dwsmith1983/standbyprobe/internal/provider"
	ddbprov "github.com/dwsmith1983/standbyprobe/internal/provider/dynamodb"
	"github.com/dwsmith1983/standbyprobe/internal/scenario"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// newProvider creates and starts the configured result store. It returns
// nil when no store is configured.
func newProvider(ctx context.Context, cfg *types.ProjectConfig) (provider.Provider, error) {
	if cfg.Store == nil {
		return nil, nil
	}
	p, err := ddbprov.New(cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := p.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting result store: %w", err)
	}
	return p, nil
}

// selectScenarios returns the configured scenarios named in names, or all
// of them when names is empty.
func selectScenarios(cfg *types.ProjectConfig, names []string) ([]types.ScenarioConfig, error) {
	if len(names) == 0 {
		return cfg.Scenarios, nil
	}
	var selected []types.ScenarioConfig
	for _, name := range names {
		i := slices.IndexFunc(cfg.Scenarios, func(sc types.ScenarioConfig) bool { return sc.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		selected = append(selected, cfg.Scenarios[i])
	}
	return selected, nil
}

// environment holds the AWS-backed collaborators of a run.
type environment struct {
	deps  scenario.Deps
	store provider.Provider
}

func newEnvironment(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (*environment, error) {
	timeouts, err := config.ParsePolling(cfg.Polling)
	if err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	store, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	alertOpts := []alert.Option{alert.WithLogger(logger), alert.WithRegion(cfg.Region)}
	if store != nil {
		alertOpts = append(alertOpts, alert.WithStore(store))
	}
	dispatcher, err := alert.NewDispatcher(cfg.Alerts, alertOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	return &environment{
		store: store,
		deps: scenario.Deps{
			Fleet: asg.NewFromConfig(awsCfg,
				asg.WithLogger(logger),
				asg.WithHealthyInterval(timeouts.InstanceInterval)),
			Automation: automation.NewRunner(
				automation.WithSSMClient(ssm.NewFromConfig(awsCfg)),
				automation.WithLogger(logger),
				automation.WithPollInterval(timeouts.ExecutionInterval),
				automation.WithMaxWait(timeouts.ExecutionMaxWait)),
			Stacks: cfnstack.NewFromConfig(awsCfg, cfnstack.WithLogger(logger)),
			Roles:  iamrole.NewFromConfig(awsCfg, iamrole.WithLogger(logger)),
			Store:  store,
			Alerts: dispatcher,
		},
	}, nil
}

func (e *environment) close(ctx context.Context) {
	if e.store != nil {
		_ = e.store.Stop(ctx)
	}
}

func statusLabel(passed bool) string {
	if passed {
		return color.GreenString("PASS")
	}
	return color.RedString("FAIL")
}

func formatStates(states []types.LifecycleState) string {
	if len(states) == 0 {
		return "(none)"
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, " -> ")
}

// printResult writes a human-readable summary of one scenario run.
func printResult(w io.Writer, res *types.ScenarioResult) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "%s %s", statusLabel(res.Passed), res.Scenario)
	_, _ = fmt.Fprintf(w, "  (run %s, %s)\n", res.RunID, res.Duration().Round(time.Second))
	if res.GroupName != "" {
		_, _ = fmt.Fprintf(w, "  Group:     %s\n", res.GroupName)
	}
	if res.InstanceID != "" {
		_, _ = fmt.Fprintf(w, "  Instance:  %s\n", res.InstanceID)
	}
	if res.ExecutionID != "" {
		_, _ = fmt.Fprintf(w, "  Execution: %s (%s)\n", res.ExecutionID, res.ExecutionStatus)
	}
	_, _ = fmt.Fprintf(w, "  Observed:  %s\n", formatStates(res.Observed))
	_, _ = fmt.Fprintf(w, "  Expected:  %s\n", formatStates(res.Expected))
	if !res.Passed {
		_, _ = fmt.Fprintf(w, "  %s %s\n", color.RedString("[%s]", res.FailureCategory), res.FailureMessage)
	}
}
