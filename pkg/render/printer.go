package render

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/search"
)

// Printer renders matched messages as console blocks. It is a search.Sink and
// a search.Reporter; both share one lock, so concurrent archives never
// interleave partial blocks.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	errOut    io.Writer
	highlight *regexp.Regexp
	colors    palette
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithHighlight marks every match of re inside message content.
func WithHighlight(re *regexp.Regexp) PrinterOption {
	return func(p *Printer) {
		p.highlight = re
	}
}

// WithColorMode overrides terminal detection.
func WithColorMode(mode ColorMode) PrinterOption {
	return func(p *Printer) {
		p.colors = newPalette(mode)
	}
}

// NewPrinter writes blocks to out and error reports to errOut.
func NewPrinter(out, errOut io.Writer, opts ...PrinterOption) *Printer {
	printer := &Printer{
		out:    out,
		errOut: errOut,
		colors: newPalette(ColorAuto),
	}

	for _, opt := range opts {
		opt(printer)
	}

	return printer
}

// Collapse folds each run of consecutive nil slots into a single nil.
// Retained messages keep their order.
func Collapse(messages []*evallog.Message) []*evallog.Message {
	collapsed := make([]*evallog.Message, 0, len(messages))

	for i, msg := range messages {
		if msg == nil && i > 0 && messages[i-1] == nil {
			continue
		}

		collapsed = append(collapsed, msg)
	}

	return collapsed
}

// WriteFile renders every retained message of result. The whole archive is
// formatted first and written with a single call.
func (p *Printer) WriteFile(result *search.FileResult) error {
	if result.Matched == 0 {
		return nil
	}

	var buf strings.Builder

	base := filepath.Base(result.Path)

	for _, sr := range result.Samples {
		for _, msg := range Collapse(sr.Sample.Messages) {
			if msg == nil {
				continue
			}

			p.formatBlock(&buf, base, sr.Sample, msg)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := io.WriteString(p.out, buf.String())
	if err != nil {
		return fmt.Errorf("write %s results: %w", base, err)
	}

	return nil
}

// FormatBlock returns the block for a single message, as WriteFile renders it.
func (p *Printer) FormatBlock(path string, sample *evallog.Sample, msg *evallog.Message) string {
	var buf strings.Builder

	p.formatBlock(&buf, filepath.Base(path), sample, msg)

	return buf.String()
}

func (p *Printer) formatBlock(buf *strings.Builder, base string, sample *evallog.Sample, msg *evallog.Message) {
	buf.WriteString("\n")
	buf.WriteString(p.colors.file.Sprint(base))
	buf.WriteString(" sample ")
	buf.WriteString(p.colors.sampleID.Sprint(sample.ID))
	buf.WriteString(" epoch ")
	buf.WriteString(p.colors.epoch.Sprint(strconv.FormatInt(sample.Epoch, 10)))
	buf.WriteString(" | ")
	buf.WriteString(p.colors.role(msg.Role).Sprint("[" + msg.Role.String() + "]"))
	buf.WriteString("\n")
	buf.WriteString(p.highlightContent(msg.Content))
	buf.WriteString("\n\n")
}

func (p *Printer) highlightContent(content string) string {
	if p.highlight == nil {
		return content
	}

	return p.highlight.ReplaceAllStringFunc(content, func(match string) string {
		return p.colors.highlight.Sprint(match)
	})
}

// ReportError writes a one-line error report. Entry errors name the archive
// and entry; file errors name the archive.
func (p *Printer) ReportError(err error) {
	var (
		entryErr *search.EntryError
		fileErr  *search.FileError
		line     string
	)

	switch {
	case errors.As(err, &entryErr):
		line = fmt.Sprintf("%s: entry %s: %v", entryErr.Path, entryErr.Entry, entryErr.Err)
	case errors.As(err, &fileErr):
		line = fmt.Sprintf("%s: %v", fileErr.Path, fileErr.Err)
	default:
		line = err.Error()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.errOut, "%s %s\n", p.colors.errLabel.Sprint("error:"), line)
}
