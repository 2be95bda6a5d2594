package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProbeBuildResource exposes buildResource to black-box tests.
func ProbeBuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(cfg)
}

// ProbeSamplerSpan reports whether a root span would be sampled under cfg.
func ProbeSamplerSpan(cfg Config) bool {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(selectSampler(cfg)))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("probe").Start(context.Background(), "probe")
	defer span.End()

	return span.SpanContext().IsSampled()
}
