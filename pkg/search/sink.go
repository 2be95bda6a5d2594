package search

import (
	"errors"
	"sync"
)

// Sink receives each archive's results once the archive is complete.
// WriteFile is called from several goroutines; implementations serialize
// their own output. A returned error aborts the run unless it is ErrStop.
type Sink interface {
	WriteFile(result *FileResult) error
}

// Reporter receives non-fatal *FileError and *EntryError values as they occur.
// It is called concurrently.
type Reporter interface {
	ReportError(err error)
}

// Progress tracks completed archives. Advance is called concurrently.
type Progress interface {
	Start(total int)
	Advance()
	Done()
}

// NoProgress discards progress updates.
type NoProgress struct{}

// Start implements Progress.
func (NoProgress) Start(int) {}

// Advance implements Progress.
func (NoProgress) Advance() {}

// Done implements Progress.
func (NoProgress) Done() {}

type discardReporter struct{}

func (discardReporter) ReportError(error) {}

// MultiSink fans each result out to every sink in order and stops at the
// first error.
type MultiSink []Sink

// WriteFile implements Sink.
func (m MultiSink) WriteFile(result *FileResult) error {
	for _, sink := range m {
		err := sink.WriteFile(result)
		if err != nil {
			return err
		}
	}

	return nil
}

// MultiReporter forwards each error to every reporter.
type MultiReporter []Reporter

// ReportError implements Reporter.
func (m MultiReporter) ReportError(err error) {
	for _, reporter := range m {
		reporter.ReportError(err)
	}
}

// Collector keeps every result and reported error in memory.
// It stops the run with ErrStop once more than Limit retained messages have
// been seen; a zero Limit never stops.
type Collector struct {
	Limit int

	mu      sync.Mutex
	results []*FileResult
	errs    []error
	matched int
	stopped bool
}

// WriteFile implements Sink.
func (c *Collector) WriteFile(result *FileResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Limit > 0 && c.matched >= c.Limit && result.Matched > 0 {
		c.stopped = true

		return ErrStop
	}

	c.results = append(c.results, result)
	c.matched += result.Matched

	if c.Limit > 0 && c.matched > c.Limit {
		c.stopped = true

		return ErrStop
	}

	return nil
}

// Stopped reports whether matches beyond Limit were seen, either refused or
// collected past the limit. Reaching Limit exactly does not stop the collector.
func (c *Collector) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopped
}

// ReportError implements Reporter.
func (c *Collector) ReportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errs = append(c.errs, err)
}

// Results returns the collected results in arrival order.
func (c *Collector) Results() []*FileResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*FileResult(nil), c.results...)
}

// Errors returns the reported errors joined, or nil.
func (c *Collector) Errors() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errors.Join(c.errs...)
}

// ErrorList returns the reported errors in arrival order.
func (c *Collector) ErrorList() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]error(nil), c.errs...)
}
