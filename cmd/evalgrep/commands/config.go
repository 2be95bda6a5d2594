package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the command printing the effective configuration.
func NewConfigCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration evalgrep would run with: built-in defaults,
overridden by .evalgrep.yaml (or --config), EVALGREP_* environment variables
and the global flags, in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.Load(cmd)
			if err != nil {
				return err
			}

			err = validate(cfg)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(data)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			return nil
		},
	}
}
