package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/devilmonastery/frankenergie/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect CLI configuration",
		Long: `Inspect the configuration the CLI runs with.

The config file is searched for in ./frankenergie.yaml, ./frankenergie.yml,
./config.yaml, /etc/frankenergie/config.yaml and ~/.config/frankenergie/config.yaml,
unless --config names one. ${VAR} references in the file are expanded.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			out, err := yaml.Marshal(ctx.Config.Redacted())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show which config file is in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			if path := config.Path(configPath); path != "" {
				fmt.Fprintln(w, path)
				return nil
			}

			userPath, err := config.UserConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "No config file found, using defaults (create %s to change them)\n", userPath)
			return nil
		},
	}
}
