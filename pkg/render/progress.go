package render

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

const (
	progressTrackerLength   = 40
	progressUpdateFrequency = 100 * time.Millisecond
	progressMessage         = "Searching archives"
)

// ProgressBar is a search.Progress that draws a single go-pretty tracker
// counting completed archives.
type ProgressBar struct {
	writer   progress.Writer
	tracker  *progress.Tracker
	finished chan struct{}
}

// NewProgressBar draws to w, normally stderr.
func NewProgressBar(w io.Writer) *ProgressBar {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(progressTrackerLength)
	pw.SetUpdateFrequency(progressUpdateFrequency)
	pw.SetStyle(progress.StyleDefault)

	return &ProgressBar{writer: pw}
}

// Start begins rendering a tracker for total archives.
func (pb *ProgressBar) Start(total int) {
	pb.tracker = &progress.Tracker{
		Message: progressMessage,
		Total:   int64(total),
		Units:   progress.UnitsDefault,
	}
	pb.finished = make(chan struct{})

	pb.writer.AppendTracker(pb.tracker)

	go func() {
		defer close(pb.finished)

		pb.writer.Render()
	}()
}

// Advance counts one completed archive.
func (pb *ProgressBar) Advance() {
	pb.tracker.Increment(1)
}

// Done marks the tracker complete and waits for the final frame.
func (pb *ProgressBar) Done() {
	if pb.tracker == nil {
		return
	}

	pb.tracker.MarkAsDone()
	<-pb.finished
}
