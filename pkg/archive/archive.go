// Package archive provides read access to evaluation-run archives and
// discovery of archive files on disk.
package archive

import (
	"errors"
)

// DefaultExtension is the file extension of evaluation-run archives.
const DefaultExtension = ".eval"

// Sentinel errors.
var (
	// ErrEntryNotFound indicates the archive has no entry with the requested name.
	ErrEntryNotFound = errors.New("archive entry not found")
	// ErrEntryTooLarge indicates an entry exceeds the configured size limit.
	ErrEntryTooLarge = errors.New("archive entry exceeds size limit")
)

// Archive is a random-access container of named entries.
// Implementations must allow concurrent ReadEntry calls.
type Archive interface {
	// Path returns the file the archive was opened from.
	Path() string
	// EntryNames lists entry names in container order.
	EntryNames() []string
	// ReadEntry returns the full contents of the named entry.
	ReadEntry(name string) ([]byte, error)
	// Close releases the underlying file.
	Close() error
}

// Opener opens the archive stored at path.
type Opener func(path string) (Archive, error)
