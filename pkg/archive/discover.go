package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Discover resolves the input path to archive files.
// A regular file is returned as-is regardless of its extension; a directory
// is walked recursively for files ending in ext (case-insensitive).
// Unreadable subdirectories are skipped. The result is sorted.
func Discover(root, ext string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	if ext == "" {
		ext = DefaultExtension
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var files []string

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != root {
				return fs.SkipDir
			}

			return err
		}

		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ext) {
			files = append(files, path)
		}

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	slices.Sort(files)

	return files, nil
}
