package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/scenario"
	"github.com/dwsmith1983/standbyprobe/internal/telemetry"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		dir      string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run standby scenarios against real infrastructure",
		Long: `Each scenario provisions its own role, stack and document, executes the
automation while recording the instance's lifecycle transitions, and checks
them against the expected sequence. With no arguments every configured
scenario runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1")
			}
			return runScenarios(cmd.Context(), cmd.OutOrStdout(), dir, args, parallel)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "project directory containing "+config.FileName)
	cmd.Flags().IntVar(&parallel, "parallel", 2, "maximum scenarios running at once")
	return cmd
}

func runScenarios(ctx context.Context, w io.Writer, dir string, names []string, parallel int) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	scenarios, err := selectScenarios(cfg, names)
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	env, err := newEnvironment(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.close(context.WithoutCancel(ctx))

	runner, err := scenario.New(cfg, env.deps, scenario.WithLogger(logger))
	if err != nil {
		return err
	}
	return executeAll(ctx, w, runner, scenarios, parallel)
}

// scenarioRunner is the part of scenario.Runner the run command drives.
type scenarioRunner interface {
	Run(ctx context.Context, sc types.ScenarioConfig) (*types.ScenarioResult, error)
}

// executeAll runs every scenario with at most parallel in flight, prints
// each result and reports how many failed. One failing scenario does not
// cancel the others.
func executeAll(ctx context.Context, w io.Writer, runner scenarioRunner, scenarios []types.ScenarioConfig, parallel int) error {
	results := make([]*types.ScenarioResult, len(scenarios))
	errs := make([]error, len(scenarios))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i], errs[i] = runner.Run(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, sc := range scenarios {
		res := results[i]
		if res == nil {
			failed++
			_, _ = fmt.Fprintf(w, "%s %s\n  %v\n", statusLabel(false), sc.Name, errs[i])
			continue
		}
		printResult(w, res)
		if !res.Passed {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	return nil
}
