package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitreq/packages/core/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var force bool
	var format string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a config file holding the default settings to the current
directory.

Examples:
  hitreq init
  hitreq init --format json --force`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			switch format {
			case "yaml":
				name = ".hitreq.yaml"
			case "json":
				name = ".hitreq.json"
			default:
				return withExitCode(ExitUsageError, fmt.Errorf("unknown format %q, expected yaml or json", format))
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			configFile := filepath.Join(cwd, name)
			if !force {
				if _, err := os.Stat(configFile); err == nil {
					return fmt.Errorf("file already exists: %s (use --force to overwrite)", configFile)
				}
			}

			cfg := config.DefaultConfig()
			cfg.Headers = map[string]string{"User-Agent": "hitreq/" + version}
			if err := cfg.SaveConfig(configFile); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&format, "format", "yaml", "File format: yaml or json")
	return cmd
}
