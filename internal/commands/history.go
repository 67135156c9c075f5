package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/provider"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var (
		dir    string
		limit  int
		alerts bool
	)

	cmd := &cobra.Command{
		Use:   "history [scenario]",
		Short: "Show recent scenario results from the result store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			return runHistory(cmd.Context(), cmd.OutOrStdout(), dir, name, limit, alerts)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "project directory containing "+config.FileName)
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum entries to show")
	cmd.Flags().BoolVar(&alerts, "alerts", false, "show alerts instead of results")
	return cmd
}

func runHistory(ctx context.Context, w io.Writer, dir, name string, limit int, alerts bool) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prov, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	if prov == nil {
		return errors.New("no result store configured (set store.tableName)")
	}
	defer func() { _ = prov.Stop(ctx) }()

	if alerts {
		return showAlerts(ctx, w, prov, name, limit)
	}
	return showResults(ctx, w, prov, name, limit)
}

func showResults(ctx context.Context, w io.Writer, prov provider.Provider, name string, limit int) error {
	var (
		results []types.ScenarioResult
		err     error
	)
	if name == "" {
		results, err = prov.ListAllResults(ctx, limit)
	} else {
		results, err = prov.ListResults(ctx, name, limit)
	}
	if err != nil {
		return fmt.Errorf("listing results: %w", err)
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No results recorded.")
		return nil
	}

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "  %s  %-20s %s  %-8s %s\n",
			r.RunID, r.Scenario, statusLabel(r.Passed),
			r.Duration().Round(time.Second), r.StartedAt.Format(time.RFC3339))
		if !r.Passed {
			_, _ = fmt.Fprintf(w, "      [%s] %s\n", r.FailureCategory, r.FailureMessage)
		}
	}
	return nil
}

func showAlerts(ctx context.Context, w io.Writer, prov provider.Provider, name string, limit int) error {
	if name == "" {
		return errors.New("--alerts requires a scenario name")
	}
	alerts, err := prov.ListAlerts(ctx, name, limit)
	if err != nil {
		return fmt.Errorf("listing alerts: %w", err)
	}
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(w, "No alerts recorded.")
		return nil
	}
	for _, a := range alerts {
		level := color.YellowString("%s", a.Level)
		if a.Level == types.AlertLevelError {
			level = color.RedString("%s", a.Level)
		}
		_, _ = fmt.Fprintf(w, "  %s  %-7s %s  %s\n", a.Timestamp.Format(time.RFC3339), level, a.RunID, a.Message)
	}
	return nil
}
