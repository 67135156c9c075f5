package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/standbyprobe/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "standbyprobe",
		Short: "Integration tests for ASG standby automation documents",
		Long: `standbyprobe provisions a disposable Auto Scaling group, runs an SSM
Automation document that moves an instance into or out of Standby, records
the lifecycle transitions the instance goes through, and checks them against
the expected sequence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewHistoryCmd(),
		commands.NewWaitStateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
