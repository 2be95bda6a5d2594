package search

import (
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
)

// SampleResult is one decoded sample and where it came from.
type SampleResult struct {
	Locator evallog.Locator
	Sample  *evallog.Sample
}

// FileResult is everything one archive produced.
type FileResult struct {
	Path string

	// Header is nil when the archive has no readable header.json.
	Header *evallog.Header

	// Selected counts entries that passed name matching and selection.
	Selected int

	// Failed counts selected entries that could not be read or decoded.
	Failed int

	// Matched counts retained messages across Samples.
	Matched int

	// Samples are in archive listing order. Failed entries are absent.
	Samples []SampleResult
}

// Stats summarizes one run.
type Stats struct {
	Files         int64
	FailedFiles   int64
	Entries       int64
	FailedEntries int64
	Samples       int64
	Matched       int64
	BytesRead     int64
	Elapsed       time.Duration
}

// Errors reports whether any archive or entry failed.
func (s Stats) Errors() bool {
	return s.FailedFiles > 0 || s.FailedEntries > 0
}

func (s Stats) observe() observability.SearchStats {
	return observability.SearchStats{
		Files:         s.Files,
		FailedFiles:   s.FailedFiles,
		Entries:       s.Entries,
		FailedEntries: s.FailedEntries,
		Samples:       s.Samples,
		Matched:       s.Matched,
		BytesRead:     s.BytesRead,
		Duration:      s.Elapsed,
	}
}

// FileError is an archive that could not be opened or listed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// EntryError is a sample entry that could not be read, named or decoded.
type EntryError struct {
	Path  string
	Entry string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
