package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/standbyprobe/internal/asg"
	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/internal/telemetry"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// NewWaitStateCmd creates the wait-state command.
func NewWaitStateCmd() *cobra.Command {
	var (
		region   string
		interval time.Duration
		maxWait  time.Duration
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "wait-state <group> <instance> <state>",
		Short: "Poll an instance until it reaches a lifecycle state",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
			if err != nil {
				return fmt.Errorf("loading AWS config: %w", err)
			}
			logger := telemetry.NewLogger(os.Stderr, logLevel, "text")
			fetcher := asg.NewFromConfig(awsCfg, asg.WithLogger(logger))
			poller := lifecycle.NewPoller(fetcher,
				lifecycle.WithInterval(interval),
				lifecycle.WithMaxWait(maxWait),
				lifecycle.WithLogger(logger))
			return waitState(ctx, cmd.OutOrStdout(), poller, args[0], args[1], types.LifecycleState(args[2]))
		},
	}

	cmd.Flags().StringVar(&region, "region", config.DefaultRegion, "AWS region of the group")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "delay between state checks")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 60*time.Second, "give up after this long")
	cmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	return cmd
}

type stateWaiter interface {
	WaitForState(ctx context.Context, group, instanceID string, target types.LifecycleState) (types.LifecycleState, error)
}

func waitState(ctx context.Context, w io.Writer, waiter stateWaiter, group, instanceID string, target types.LifecycleState) error {
	state, err := waiter.WaitForState(ctx, group, instanceID, target)
	if err != nil {
		_, _ = fmt.Fprintln(w, color.RedString("✗ %s did not reach %s (last state %q)", instanceID, target, state))
		return err
	}
	_, _ = fmt.Fprintln(w, color.GreenString("✓ %s is %s", instanceID, state))
	return nil
}
