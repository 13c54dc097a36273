package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitreq/packages/core/config"
	"github.com/spf13/cobra"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file...]",
		Short: "Check config files for errors",
		Long: `Check config files for errors without sending anything. Without
arguments the --config file, or the one found in the working directory,
is checked.

Examples:
  hitreq validate
  hitreq validate .hitreq.yaml ci/.hitreq.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				path := root.configPath
				if path == "" {
					path = config.FindConfigFile(".")
				}
				if path == "" {
					return withExitCode(ExitConfigError, fmt.Errorf("no config file found"))
				}
				files = []string{path}
			}

			hasErrors := false
			for _, file := range files {
				if _, err := config.LoadConfig(file); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
					hasErrors = true
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
				}
			}

			if hasErrors {
				return withExitCode(ExitConfigError, fmt.Errorf("validation failed"))
			}
			return nil
		},
	}
}
