package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "evalgrep.mcp.requests.total"
	metricRequestDuration  = "evalgrep.mcp.request.duration.seconds"
	metricErrorsTotal      = "evalgrep.mcp.errors.total"
	metricInflightRequests = "evalgrep.mcp.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK labels a request that completed normally.
	StatusOK = "ok"
	// StatusError labels a request that failed.
	StatusError = "error"
)

// durationBucketBoundaries spans 1ms lookups up to ten-minute sweeps over
// large archive trees.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// REDMetrics holds Rate, Error and Duration instruments for MCP tool calls.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of tool requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Tool request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed tool requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight tool requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records one completed request. Nil receivers are no-ops.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge for op and returns its
// decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}
