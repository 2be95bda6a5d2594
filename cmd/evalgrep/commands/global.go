// Package commands implements CLI command handlers for evalgrep.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/evalgrep/pkg/config"
)

// Persistent flag names shared by every command.
const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
)

// GlobalOptions holds the persistent flags bound on the root command.
type GlobalOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
}

// BindGlobalFlags registers the persistent flags on root.
func BindGlobalFlags(root *cobra.Command) *GlobalOptions {
	opts := &GlobalOptions{}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, flagConfig, "", "Config file (default: .evalgrep.yaml in the working directory or $HOME)")
	flags.StringVar(&opts.logLevel, flagLogLevel, config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.logJSON, flagLogJSON, false, "Write logs as JSON")

	return opts
}

// Load reads the configuration and applies the persistent flags the user set
// explicitly on cmd.
func (o *GlobalOptions) Load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed(flagLogLevel) {
		cfg.Logging.Level = o.logLevel
	}

	if cmd.Flags().Changed(flagLogJSON) {
		cfg.Logging.JSON = o.logJSON
	}

	return cfg, nil
}

// validate re-checks cfg after flag overrides.
func validate(cfg *config.Config) error {
	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	return nil
}

// ExitError ends the process with Code and no further message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
