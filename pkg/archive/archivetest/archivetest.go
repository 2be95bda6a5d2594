// Package archivetest builds evaluation-run archives for tests.
package archivetest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
)

// Entry is one named blob written into a test archive.
type Entry struct {
	Name string
	Data string
}

// Msg is a message in a generated sample record.
type Msg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sample returns the entry for a sample record with the given messages.
func Sample(tb testing.TB, id string, epoch uint32, messages ...Msg) Entry {
	tb.Helper()

	if messages == nil {
		messages = []Msg{}
	}

	record := map[string]any{
		"id":       id,
		"epoch":    epoch,
		"messages": messages,
		"metadata": map[string]any{"generator": "archivetest"},
	}

	data, err := json.Marshal(record)
	require.NoError(tb, err)

	return Entry{Name: evallog.EntryName(id, epoch), Data: string(data)}
}

// Header returns a header.json entry for a run of the given task.
func Header(task string, epochs int) Entry {
	return Entry{
		Name: evallog.HeaderEntry,
		Data: `{"eval":{"run_id":"run-` + task + `","task":"` + task + `"},` +
			`"dataset":{"name":"` + task + `"},"config":{"epochs":` + strconv.Itoa(epochs) + `}}`,
	}
}

// Write creates dir/name as a zip archive holding entries in order and
// returns its path.
func Write(tb testing.TB, dir, name string, entries ...Entry) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))

	file, err := os.Create(path)
	require.NoError(tb, err)

	writer := zip.NewWriter(file)

	for _, entry := range entries {
		if strings.HasSuffix(entry.Name, "/") {
			_, err = writer.Create(entry.Name)
			require.NoError(tb, err)

			continue
		}

		w, createErr := writer.Create(entry.Name)
		require.NoError(tb, createErr)

		_, err = w.Write([]byte(entry.Data))
		require.NoError(tb, err)
	}

	require.NoError(tb, writer.Close())
	require.NoError(tb, file.Close())

	return path
}
