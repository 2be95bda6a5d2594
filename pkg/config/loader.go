package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName      = ".evalgrep"
	configType      = "yaml"
	envPrefix       = "EVALGREP"
	envKeySeparator = "_"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// A non-empty configPath names the file explicitly; otherwise .evalgrep.yaml
// is looked up in the working directory and then $HOME. A missing file is not
// an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or env var is set.
func Default() *Config {
	viperCfg := viper.New()
	applyDefaults(viperCfg)

	var cfg Config

	// Defaults always decode.
	_ = viperCfg.Unmarshal(&cfg)

	return &cfg
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("search.workers", DefaultWorkers)
	viperCfg.SetDefault("search.epochs", DefaultEpochs)
	viperCfg.SetDefault("search.samples", "")
	viperCfg.SetDefault("search.message_regex", "")
	viperCfg.SetDefault("search.roles", []string{})
	viperCfg.SetDefault("search.extension", DefaultExtension)
	viperCfg.SetDefault("search.max_entry_size", DefaultMaxEntrySize)

	viperCfg.SetDefault("output.color", DefaultColor)
	viperCfg.SetDefault("output.progress", DefaultProgress)
	viperCfg.SetDefault("output.summary", DefaultSummary)
	viperCfg.SetDefault("output.metrics_file", "")

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.environment", "")
}
