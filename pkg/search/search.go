// Package search runs the filtered decoder across many archives at once.
//
// Archives are processed by a bounded pool of workers; within each archive the
// selected sample entries are decoded in parallel, with one process-wide
// semaphore bounding the total number of in-flight decodes. Results reach the
// Sink one archive at a time, in archive listing order.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/filter"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
)

// ErrStop may be returned by a Sink to end the run early without failing it.
var ErrStop = errors.New("search stopped")

// Span and attribute names.
const (
	spanSearch = "evalgrep.search"
	spanFile   = "evalgrep.file"

	attrArchivePath    = "archive.path"
	attrArchiveEntries = "archive.entries"
	attrSearchFiles    = "search.files"
	attrSearchWorkers  = "search.workers"
)

// Config tunes the pipeline.
type Config struct {
	// Workers bounds both concurrent archives and concurrent decodes.
	// Zero or negative means runtime.GOMAXPROCS(0).
	Workers int
}

// Deps are the collaborators a Pipeline drives. Opener, Matcher and Sink are
// required; the rest fall back to no-ops.
type Deps struct {
	Opener    archive.Opener
	Matcher   *evallog.EntryMatcher
	Selection filter.Selection
	Keep      evallog.MessagePredicate
	Sink      Sink
	Reporter  Reporter
	Progress  Progress
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *observability.SearchMetrics

	// ReadHeaders fills FileResult.Header from each archive's header.json.
	// Off by default since only summaries need it.
	ReadHeaders bool
}

// Pipeline is a configured search over a set of archives. A Pipeline may be
// run more than once; runs do not share state.
type Pipeline struct {
	workers  int
	deps     Deps
	tracer   trace.Tracer
	logger   *slog.Logger
	reporter Reporter
	progress Progress
}

// New builds a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pipeline := &Pipeline{
		workers:  workers,
		deps:     deps,
		tracer:   deps.Tracer,
		logger:   deps.Logger,
		reporter: deps.Reporter,
		progress: deps.Progress,
	}

	if pipeline.tracer == nil {
		pipeline.tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if pipeline.logger == nil {
		pipeline.logger = slog.New(slog.DiscardHandler)
	}

	if pipeline.reporter == nil {
		pipeline.reporter = discardReporter{}
	}

	if pipeline.progress == nil {
		pipeline.progress = NoProgress{}
	}

	return pipeline
}

// Workers returns the effective worker count.
func (p *Pipeline) Workers() int {
	return p.workers
}

// run holds the state shared by all workers of one Run call.
type run struct {
	*Pipeline

	decodeSlots *semaphore.Weighted
	counters    counters
}

// Run searches files and returns the run statistics. Per-archive and
// per-entry failures are reported and counted; only a Sink error (or ctx
// cancellation) fails the run.
func (p *Pipeline) Run(ctx context.Context, files []string) (Stats, error) {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, spanSearch, trace.WithAttributes(
		attribute.Int(attrSearchFiles, len(files)),
		attribute.Int(attrSearchWorkers, p.workers),
	))
	defer span.End()

	state := &run{
		Pipeline:    p,
		decodeSlots: semaphore.NewWeighted(int64(p.workers)),
	}

	p.progress.Start(len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for _, path := range files {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			defer p.progress.Advance()

			return state.searchFile(groupCtx, path)
		})
	}

	err := group.Wait()
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("search interrupted: %w", context.Cause(ctx))
	}

	p.progress.Done()

	stats := state.counters.snapshot(time.Since(start))
	p.deps.Metrics.RecordRun(ctx, stats.observe())

	if errors.Is(err, ErrStop) {
		err = nil
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return stats, err
	}

	return stats, nil
}

func (r *run) searchFile(ctx context.Context, path string) error {
	ctx, span := r.tracer.Start(ctx, spanFile, trace.WithAttributes(attribute.String(attrArchivePath, path)))
	defer span.End()

	r.counters.files.Add(1)

	arc, err := r.deps.Opener(path)
	if err != nil {
		r.counters.failedFiles.Add(1)
		span.RecordError(err)
		r.reporter.ReportError(&FileError{Path: path, Err: err})

		return nil
	}

	defer func() {
		closeErr := arc.Close()
		if closeErr != nil {
			r.logger.WarnContext(ctx, "close archive", "archive", path, "error", closeErr)
		}
	}()

	selected := r.selectEntries(path, arc.EntryNames())
	span.SetAttributes(attribute.Int(attrArchiveEntries, len(selected)))
	r.counters.entries.Add(int64(len(selected)))

	slots := make([]*evallog.Sample, len(selected))

	inner, innerCtx := errgroup.WithContext(ctx)
	inner.SetLimit(r.workers)

	for i, loc := range selected {
		inner.Go(func() error {
			acquireErr := r.decodeSlots.Acquire(innerCtx, 1)
			if acquireErr != nil {
				return fmt.Errorf("acquire decode slot: %w", acquireErr)
			}
			defer r.decodeSlots.Release(1)

			slots[i] = r.decodeEntry(innerCtx, arc, loc)

			return nil
		})
	}

	err = inner.Wait()
	if err != nil {
		return err
	}

	result := &FileResult{
		Path:     path,
		Header:   r.readHeader(ctx, arc),
		Selected: len(selected),
		Samples:  make([]SampleResult, 0, len(selected)),
	}

	for i, sample := range slots {
		if sample == nil {
			result.Failed++

			continue
		}

		result.Samples = append(result.Samples, SampleResult{Locator: selected[i], Sample: sample})
		result.Matched += sample.Present()
	}

	if ctx.Err() != nil {
		return fmt.Errorf("search %s: %w", path, context.Cause(ctx))
	}

	r.logger.DebugContext(ctx, "archive searched",
		"archive", path, "selected", result.Selected, "failed", result.Failed, "matched", result.Matched)

	err = r.deps.Sink.WriteFile(result)
	if err != nil {
		if errors.Is(err, ErrStop) {
			return ErrStop
		}

		return fmt.Errorf("write results for %s: %w", path, err)
	}

	return nil
}

// selectEntries runs the name matcher and the selection filters over the
// archive listing, preserving listing order.
func (r *run) selectEntries(path string, names []string) []evallog.Locator {
	selected := make([]evallog.Locator, 0, len(names))

	for _, name := range names {
		key, ok, err := r.deps.Matcher.Match(name)
		if err != nil {
			r.counters.failedEntries.Add(1)
			r.reporter.ReportError(&EntryError{Path: path, Entry: name, Err: err})

			continue
		}

		if !ok || !r.deps.Selection.Matches(key.ID, key.Epoch) {
			continue
		}

		selected = append(selected, evallog.Locator{ArchivePath: path, EntryName: name, SampleKey: key})
	}

	return selected
}

// decodeEntry returns nil after reporting a failed entry.
func (r *run) decodeEntry(ctx context.Context, arc archive.Archive, loc evallog.Locator) *evallog.Sample {
	data, err := arc.ReadEntry(loc.EntryName)
	if err == nil {
		r.counters.bytesRead.Add(int64(len(data)))

		var sample *evallog.Sample

		sample, err = evallog.DecodeSample(data, r.deps.Keep)
		if err == nil {
			r.counters.samples.Add(1)
			r.counters.matched.Add(int64(sample.Present()))

			return sample
		}
	}

	r.counters.failedEntries.Add(1)
	r.logger.DebugContext(ctx, "entry failed", "archive", loc.ArchivePath, "entry", loc.EntryName, "error", err)
	r.reporter.ReportError(&EntryError{Path: loc.ArchivePath, Entry: loc.EntryName, Err: err})

	return nil
}

// readHeader is best effort: archives without a usable header.json yield nil.
func (r *run) readHeader(ctx context.Context, arc archive.Archive) *evallog.Header {
	if !r.deps.ReadHeaders {
		return nil
	}

	data, err := arc.ReadEntry(evallog.HeaderEntry)
	if err != nil {
		return nil
	}

	header, err := evallog.DecodeHeader(data)
	if err != nil {
		r.logger.DebugContext(ctx, "header unreadable", "archive", arc.Path(), "error", err)

		return nil
	}

	return header
}

type counters struct {
	files         atomic.Int64
	failedFiles   atomic.Int64
	entries       atomic.Int64
	failedEntries atomic.Int64
	samples       atomic.Int64
	matched       atomic.Int64
	bytesRead     atomic.Int64
}

func (c *counters) snapshot(elapsed time.Duration) Stats {
	return Stats{
		Files:         c.files.Load(),
		FailedFiles:   c.failedFiles.Load(),
		Entries:       c.entries.Load(),
		FailedEntries: c.failedEntries.Load(),
		Samples:       c.samples.Load(),
		Matched:       c.matched.Load(),
		BytesRead:     c.bytesRead.Load(),
		Elapsed:       elapsed,
	}
}
