package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsTextfile collects OTel instruments into a private Prometheus
// registry and dumps them in the text exposition format, for the
// node-exporter textfile collector.
type MetricsTextfile struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewMetricsTextfile creates an exporter with its own registry, so several
// instances never collide on collector registration.
func NewMetricsTextfile() (*MetricsTextfile, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &MetricsTextfile{
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns the meter whose instruments land in the textfile.
func (mt *MetricsTextfile) Meter() metric.Meter {
	return mt.provider.Meter(meterName)
}

// WriteFile gathers the registry and writes it atomically to path.
func (mt *MetricsTextfile) WriteFile(path string) error {
	err := prometheus.WriteToTextfile(path, mt.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}

	return nil
}

// Shutdown releases the meter provider.
func (mt *MetricsTextfile) Shutdown(ctx context.Context) error {
	err := mt.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown textfile meter provider: %w", err)
	}

	return nil
}
