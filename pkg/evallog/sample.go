// Package evallog models the sample records stored inside evaluation-run
// archives and decodes them with per-message filtering.
package evallog

// Message is one chat message of a sample transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MessagePredicate decides whether a decoded message is retained.
// It must be a pure function of its argument.
type MessagePredicate func(Message) bool

// Sample is one decoded evaluation transcript.
//
// Messages has exactly one slot per element of the source messages array.
// A nil slot marks a message rejected by the predicate; slots are never
// removed, so indices line up with the original transcript.
type Sample struct {
	ID       string
	Epoch    int64
	Messages []*Message
}

// Present returns the number of retained messages.
func (s *Sample) Present() int {
	count := 0

	for _, msg := range s.Messages {
		if msg != nil {
			count++
		}
	}

	return count
}

// Locator addresses one sample entry inside one archive.
type Locator struct {
	ArchivePath string
	EntryName   string
	SampleKey
}
