package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "hitreq",
		Short: "HTTP requests from the terminal. Two transports, one response.",
		Long: `hitreq sends HTTP requests over either of two transports and
reads the reply through a single response type.

The socket transport follows redirects itself within a hop budget,
inflates gzip and deflate bodies and reports download progress. The
fetch transport hands the request to a buffered engine that follows
redirects on its own.

Settings are read from .hitreq.json, .hitreq.yaml or .hitreqrc in the
working directory unless --config names a file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetHandler(cli.New(cmd.ErrOrStderr()))
			log.SetLevel(log.InfoLevel)
			if opts.noColor {
				color.NoColor = true
			}
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
				log.Debugf("hitreq version %s", version)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: search the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(newFetchCmd(opts))
	rootCmd.AddCommand(newPollCmd(opts))
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return withExitCode(ExitUsageError, err)
		}
		return nil
	}
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := newRootCmd().Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		}
		os.Exit(exitCode(err))
	}
}
