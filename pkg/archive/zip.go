package archive

import (
	"archive/zip"
	"fmt"
	"io"
)

// ZipOption configures a zip-backed archive.
type ZipOption func(*zipArchive)

// WithMaxEntrySize rejects entries whose uncompressed size exceeds limit bytes.
// Zero disables the limit.
func WithMaxEntrySize(limit uint64) ZipOption {
	return func(za *zipArchive) {
		za.maxEntrySize = limit
	}
}

type zipArchive struct {
	path         string
	reader       *zip.ReadCloser
	entries      map[string]*zip.File
	names        []string
	maxEntrySize uint64
}

// OpenZip opens a zip container. Entry reads go through the file's ReaderAt,
// so concurrent ReadEntry calls do not contend on a shared cursor.
func OpenZip(path string, opts ...ZipOption) (Archive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	za := &zipArchive{
		path:    path,
		reader:  reader,
		entries: make(map[string]*zip.File, len(reader.File)),
		names:   make([]string, 0, len(reader.File)),
	}

	for _, opt := range opts {
		opt(za)
	}

	for _, file := range reader.File {
		if _, dup := za.entries[file.Name]; dup {
			continue
		}

		za.entries[file.Name] = file
		za.names = append(za.names, file.Name)
	}

	return za, nil
}

// ZipOpener returns an Opener producing zip archives with the given options.
func ZipOpener(opts ...ZipOption) Opener {
	return func(path string) (Archive, error) {
		return OpenZip(path, opts...)
	}
}

func (za *zipArchive) Path() string {
	return za.path
}

func (za *zipArchive) EntryNames() []string {
	names := make([]string, len(za.names))
	copy(names, za.names)

	return names
}

func (za *zipArchive) ReadEntry(name string) ([]byte, error) {
	file, ok := za.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	if za.maxEntrySize > 0 && file.UncompressedSize64 > za.maxEntrySize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrEntryTooLarge, name, file.UncompressedSize64, za.maxEntrySize)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", name, err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if za.maxEntrySize > 0 {
		// The header size can lie; cap the stream one byte past the limit.
		src = io.LimitReader(rc, int64(za.maxEntrySize)+1) //nolint:gosec // limit fits in int64 in practice
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", name, err)
	}

	if za.maxEntrySize > 0 && uint64(len(data)) > za.maxEntrySize {
		return nil, fmt.Errorf("%w: %s (limit %d)", ErrEntryTooLarge, name, za.maxEntrySize)
	}

	return data, nil
}

func (za *zipArchive) Close() error {
	err := za.reader.Close()
	if err != nil {
		return fmt.Errorf("close archive %s: %w", za.path, err)
	}

	return nil
}
