package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/standbyprobe/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var region, ami string

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a new standbyprobe project",
		Long: `Creates standbyprobe.yaml with both built-in scenarios plus the templates/
and documents/ directories that hold the stack template and the automation
documents under test.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir, region, ami)
		},
	}

	cmd.Flags().StringVar(&region, "region", config.DefaultRegion, "AWS region to test in")
	cmd.Flags().StringVar(&ami, "ami", "", "AMI id for the test instances in --region")
	return cmd
}

func runInit(w io.Writer, dir, region, ami string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Initializing standbyprobe project in %s\n", dir)

	for _, sub := range []string{"templates", "documents"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	if err := config.Write(dir, config.Default(region, ami)); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, color.GreenString("  ✓ Wrote %s", config.FileName))

	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "Next steps:")
	if ami == "" {
		_, _ = fmt.Fprintf(w, "  set amis.%s in %s\n", region, config.FileName)
	}
	_, _ = fmt.Fprintf(w, "  add the ASG template as %s\n", config.DefaultTemplateFile)
	_, _ = fmt.Fprintln(w, "  add documents/enter-standby.json and documents/exit-standby.json")
	_, _ = fmt.Fprintln(w, "  standbyprobe run")
	return nil
}
