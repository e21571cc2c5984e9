package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Environ()))
}

func run(args []string, stdout, stderr io.Writer, environ []string) int {
	cmd := NewRootCommand(stdout, stderr, environ)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var rErr *RunError
	if errors.As(err, &rErr) {
		fmt.Fprintf(stderr, "deploy-pipeline: %v\n", rErr)
		return rErr.ExitCode
	}
	fmt.Fprintf(stderr, "configuration error: %v\n", err)
	return ExitConfigError
}

// NewRootCommand builds the deploy-pipeline command. Configuration is read
// from flags, DEPLOY_PIPELINE_* environment variables or a settings file.
func NewRootCommand(stdout, stderr io.Writer, environ []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-pipeline",
		Short: "Render a staged deployment pipeline from labeled hosts and packages",
		Long: `deploy-pipeline selects hosts and packages by label, groups the hosts into
ordered waves and renders one job per host for every wave and phase of the
pipeline definition.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return &RunError{Op: "load_config", Err: err, ExitCode: ExitConfigError}
			}
			logger := SetupLogger(cfg, stderr)
			return NewRunner(cfg, stdout, environ, logger).Run()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	RegisterFlags(cmd.Flags())
	cmd.AddCommand(newVersionCommand(stdout))

	return cmd
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deploy-pipeline version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "deploy-pipeline %s (built %s)\n", Version, BuildTime)
		},
	}
}
