package render

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/evalgrep/pkg/search"
)

const (
	noTask       = "-"
	roundElapsed = time.Millisecond
)

type summaryRow struct {
	path    string
	task    string
	samples int
	matched int
	errors  int
}

// Summary tallies per-archive results for the end-of-run table. It is a
// search.Sink and a search.Reporter and is safe for concurrent use.
type Summary struct {
	mu   sync.Mutex
	rows map[string]*summaryRow
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{rows: make(map[string]*summaryRow)}
}

func (s *Summary) row(path string) *summaryRow {
	row, ok := s.rows[path]
	if !ok {
		row = &summaryRow{path: path, task: noTask}
		s.rows[path] = row
	}

	return row
}

// WriteFile implements search.Sink.
func (s *Summary) WriteFile(result *search.FileResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.row(result.Path)
	row.samples = len(result.Samples)
	row.matched = result.Matched

	if result.Header != nil && result.Header.Eval.Task != "" {
		row.task = result.Header.Eval.Task
	}

	return nil
}

// ReportError implements search.Reporter.
func (s *Summary) ReportError(err error) {
	var (
		entryErr *search.EntryError
		fileErr  *search.FileError
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.As(err, &entryErr):
		s.row(entryErr.Path).errors++
	case errors.As(err, &fileErr):
		s.row(fileErr.Path).errors++
	}
}

// Render writes the table: one row per archive sorted by path, then a totals
// footer built from stats.
func (s *Summary) Render(w io.Writer, stats search.Stats) error {
	s.mu.Lock()

	rows := make([]summaryRow, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, *row)
	}

	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].path < rows[j].path })

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Archive", "Task", "Samples", "Matched", "Errors"})

	for _, row := range rows {
		tbl.AppendRow(table.Row{filepath.Base(row.path), row.task, row.samples, row.matched, row.errors})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d archives", stats.Files),
		fmt.Sprintf("%s read in %s", humanize.Bytes(uint64(max(stats.BytesRead, 0))), stats.Elapsed.Round(roundElapsed)),
		stats.Samples,
		stats.Matched,
		stats.FailedFiles + stats.FailedEntries,
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
