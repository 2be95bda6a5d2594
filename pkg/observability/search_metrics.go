package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal         = "evalgrep.search.files.total"
	metricFilesFailedTotal   = "evalgrep.search.files.failed.total"
	metricEntriesTotal       = "evalgrep.search.entries.total"
	metricEntriesFailedTotal = "evalgrep.search.entries.failed.total"
	metricSamplesTotal       = "evalgrep.search.samples.total"
	metricMatchedTotal       = "evalgrep.search.messages.matched.total"
	metricBytesReadTotal     = "evalgrep.search.bytes.read.total"
	metricRunDuration        = "evalgrep.search.duration.seconds"
)

// SearchMetrics holds the instruments describing search runs.
type SearchMetrics struct {
	files         metric.Int64Counter
	filesFailed   metric.Int64Counter
	entries       metric.Int64Counter
	entriesFailed metric.Int64Counter
	samples       metric.Int64Counter
	matched       metric.Int64Counter
	bytesRead     metric.Int64Counter
	duration      metric.Float64Histogram
}

// SearchStats is the outcome of one search run, independent of pipeline types.
type SearchStats struct {
	Files         int64
	FailedFiles   int64
	Entries       int64
	FailedEntries int64
	Samples       int64
	Matched       int64
	BytesRead     int64
	Duration      time.Duration
}

type counterSpec struct {
	dst  *metric.Int64Counter
	name string
	desc string
	unit string
}

// NewSearchMetrics creates the search instruments from mt.
func NewSearchMetrics(mt metric.Meter) (*SearchMetrics, error) {
	sm := &SearchMetrics{}

	specs := []counterSpec{
		{&sm.files, metricFilesTotal, "Archives processed", "{file}"},
		{&sm.filesFailed, metricFilesFailedTotal, "Archives that could not be opened", "{file}"},
		{&sm.entries, metricEntriesTotal, "Sample entries selected for decoding", "{entry}"},
		{&sm.entriesFailed, metricEntriesFailedTotal, "Sample entries that failed to read or decode", "{entry}"},
		{&sm.samples, metricSamplesTotal, "Samples decoded", "{sample}"},
		{&sm.matched, metricMatchedTotal, "Messages accepted by the message filter", "{message}"},
		{&sm.bytesRead, metricBytesReadTotal, "Uncompressed sample bytes read", "By"},
	}

	for _, spec := range specs {
		counter, err := mt.Int64Counter(spec.name,
			metric.WithDescription(spec.desc),
			metric.WithUnit(spec.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", spec.name, err)
		}

		*spec.dst = counter
	}

	duration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Search run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	sm.duration = duration

	return sm, nil
}

// RecordRun records the statistics of a completed run.
// Safe to call on a nil receiver (no-op).
func (sm *SearchMetrics) RecordRun(ctx context.Context, stats SearchStats) {
	if sm == nil {
		return
	}

	sm.files.Add(ctx, stats.Files)
	sm.filesFailed.Add(ctx, stats.FailedFiles)
	sm.entries.Add(ctx, stats.Entries)
	sm.entriesFailed.Add(ctx, stats.FailedEntries)
	sm.samples.Add(ctx, stats.Samples)
	sm.matched.Add(ctx, stats.Matched)
	sm.bytesRead.Add(ctx, stats.BytesRead)
	sm.duration.Record(ctx, stats.Duration.Seconds())
}
