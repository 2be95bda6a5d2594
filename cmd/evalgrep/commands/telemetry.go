package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/evalgrep/pkg/config"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
	"github.com/Sumatoshi-tech/evalgrep/pkg/version"
)

// telemetry is the observability state of one command invocation.
type telemetry struct {
	providers       observability.Providers
	textfile        *observability.MetricsTextfile
	metricsPath     string
	shutdownTimeout time.Duration
}

// startTelemetry initializes logging, tracing and metrics for cmd. Logs go to
// the command's error stream. In CLI mode a configured metrics file routes
// search metrics through a private Prometheus registry instead of the OTLP meter.
func startTelemetry(cmd *cobra.Command, cfg *config.Config, mode observability.AppMode) (*telemetry, error) {
	obsCfg := cfg.Observability(mode, version.Version)
	obsCfg.LogWriter = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	tel := &telemetry{
		providers:       providers,
		shutdownTimeout: time.Duration(obsCfg.ShutdownTimeoutSec) * time.Second,
	}

	if mode == observability.ModeCLI {
		tel.metricsPath = cfg.Output.MetricsFile
	}

	if tel.metricsPath != "" {
		tel.textfile, err = observability.NewMetricsTextfile()
		if err != nil {
			tel.shutdown()

			return nil, err
		}
	}

	return tel, nil
}

func (t *telemetry) meter() metric.Meter {
	if t.textfile != nil {
		return t.textfile.Meter()
	}

	return t.providers.Meter
}

// writeMetrics dumps the collected metrics when a metrics file is configured.
func (t *telemetry) writeMetrics() error {
	if t.textfile == nil {
		return nil
	}

	return t.textfile.WriteFile(t.metricsPath)
}

// shutdown flushes exporters; failures are logged, not returned.
func (t *telemetry) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
	defer cancel()

	if t.textfile != nil {
		err := t.textfile.Shutdown(ctx)
		if err != nil {
			t.providers.Logger.Warn("metrics textfile shutdown failed", "error", err)
		}
	}

	err := t.providers.Shutdown(ctx)
	if err != nil {
		t.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
