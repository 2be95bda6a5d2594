package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
	"github.com/Sumatoshi-tech/evalgrep/pkg/archive/archivetest"
	"github.com/Sumatoshi-tech/evalgrep/pkg/config"
	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/filter"
)

type commandFactory func(*GlobalOptions) *cobra.Command

// writeConfig stores body as a config file so tests never read $HOME.
func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "evalgrep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

// execute runs one subcommand under a fresh root and returns stdout and stderr.
func execute(t *testing.T, factory commandFactory, args ...string) (string, string, error) {
	t.Helper()

	root := &cobra.Command{Use: "evalgrep", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(factory(BindGlobalFlags(root)))

	var stdout, stderr bytes.Buffer

	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

func searchFactory(discover archiveDiscoverer, isTerminal terminalDetector) commandFactory {
	return func(global *GlobalOptions) *cobra.Command {
		return newSearchCommandWithDeps(global, discover, isTerminal)
	}
}

func alwaysFalse(io.Writer) bool { return false }

func defaultSearch() commandFactory {
	return searchFactory(archive.Discover, alwaysFalse)
}

func greetingsArchive(t *testing.T, dir string) string {
	t.Helper()

	return archivetest.Write(t, dir, "greetings.eval",
		archivetest.Header("greet", 1),
		archivetest.Sample(t, "s1", 1,
			archivetest.Msg{Role: "user", Content: "hello world"},
			archivetest.Msg{Role: "assistant", Content: "hi"},
		),
	)
}

func TestSearch_HelloWorld(t *testing.T) {
	t.Parallel()

	path := greetingsArchive(t, t.TempDir())
	cfg := writeConfig(t, "")

	stdout, _, err := execute(t, defaultSearch(),
		"search", path, "--config", cfg, "-m", "world", "--color", "never")
	require.NoError(t, err)

	assert.Equal(t, "\ngreetings.eval sample s1 epoch 1 | [user]\nhello world\n\n", stdout)
}

func TestSearch_EpochRangeAcrossArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivetest.Write(t, dir, "a.eval",
		archivetest.Sample(t, "x", 1, archivetest.Msg{Role: "user", Content: "first"}))
	archivetest.Write(t, dir, "b.eval",
		archivetest.Sample(t, "x", 2, archivetest.Msg{Role: "user", Content: "second"}))

	stdout, _, err := execute(t, defaultSearch(),
		"search", dir, "--config", writeConfig(t, ""), "-e", "2-2", "--color", "never")
	require.NoError(t, err)

	assert.Equal(t, "\nb.eval sample x epoch 2 | [user]\nsecond\n\n", stdout)
}

func TestSearch_ConfigFileSuppliesFilters(t *testing.T) {
	t.Parallel()

	path := greetingsArchive(t, t.TempDir())
	cfg := writeConfig(t, "search:\n  roles: [assistant]\noutput:\n  color: never\n")

	stdout, _, err := execute(t, defaultSearch(), "search", path, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "\ngreetings.eval sample s1 epoch 1 | [assistant]\nhi\n\n", stdout)

	stdout, _, err = execute(t, defaultSearch(), "search", path, "--config", cfg, "-r", "user")
	require.NoError(t, err)
	assert.Equal(t, "\ngreetings.eval sample s1 epoch 1 | [user]\nhello world\n\n", stdout)
}

func TestSearch_ConfigurationErrorsStopBeforeDiscovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "epochs", args: []string{"-e", "1-x"}, want: config.ErrInvalidEpochs},
		{name: "regex", args: []string{"-m", "("}, want: filter.ErrInvalidPattern},
		{name: "role", args: []string{"-r", "narrator"}, want: evallog.ErrUnknownRole},
		{name: "threads", args: []string{"--threads=-1"}, want: config.ErrInvalidWorkers},
		{name: "color", args: []string{"--color", "sometimes"}, want: config.ErrInvalidColorMode},
		{name: "max entry size", args: []string{"--max-entry-size", "lots"}, want: config.ErrInvalidMaxEntrySize},
		{name: "log level", args: []string{"--log-level", "loud"}, want: config.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var discovered atomic.Int32

			discover := func(string, string) ([]string, error) {
				discovered.Add(1)

				return nil, nil
			}

			args := append([]string{"search", "unused", "--config", writeConfig(t, "")}, tt.args...)

			_, _, err := execute(t, searchFactory(discover, alwaysFalse), args...)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, discovered.Load())
		})
	}
}

func TestSearch_EntryErrorsAreReportedAndRunSucceeds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivetest.Write(t, dir, "mixed.eval",
		archivetest.Sample(t, "good", 1, archivetest.Msg{Role: "user", Content: "fine"}),
		archivetest.Entry{Name: "samples/bad_epoch_1.json", Data: `{"epoch":1,"messages":[]}`},
	)

	stdout, stderr, err := execute(t, defaultSearch(),
		"search", dir, "--config", writeConfig(t, ""), "--color", "never")
	require.NoError(t, err)

	assert.Contains(t, stdout, "mixed.eval sample good epoch 1 | [user]\nfine")
	assert.Contains(t, stderr, "error:")
	assert.Contains(t, stderr, "entry samples/bad_epoch_1.json")
}

func TestSearch_MissingPath(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, defaultSearch(),
		"search", filepath.Join(t.TempDir(), "absent"), "--config", writeConfig(t, ""))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSearch_SummaryTable(t *testing.T) {
	t.Parallel()

	path := greetingsArchive(t, t.TempDir())

	_, stderr, err := execute(t, defaultSearch(),
		"search", path, "--config", writeConfig(t, ""), "--summary", "--color", "never")
	require.NoError(t, err)

	assert.Contains(t, stderr, "ARCHIVE")
	assert.Contains(t, stderr, "greetings.eval")
	assert.Contains(t, stderr, "greet")
	assert.Contains(t, stderr, "1 ARCHIVES")
}

func TestSearch_MetricsFile(t *testing.T) {
	t.Parallel()

	path := greetingsArchive(t, t.TempDir())
	metricsPath := filepath.Join(t.TempDir(), "evalgrep.prom")

	_, _, err := execute(t, defaultSearch(),
		"search", path, "--config", writeConfig(t, ""), "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "evalgrep_search_files")
	assert.Contains(t, string(data), "evalgrep_search_samples")
}

func TestSearch_ProgressGate(t *testing.T) {
	t.Parallel()

	path := greetingsArchive(t, t.TempDir())
	cfg := writeConfig(t, "")

	var probes atomic.Int32

	detector := func(io.Writer) bool {
		probes.Add(1)

		return false
	}

	_, _, err := execute(t, searchFactory(archive.Discover, detector), "search", path, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), probes.Load())

	_, _, err = execute(t, searchFactory(archive.Discover, detector), "search", path, "--config", cfg, "--silent")
	require.NoError(t, err)
	assert.Equal(t, int32(1), probes.Load())
}

func TestSearch_RequiresPath(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, defaultSearch(), "search", "--config", writeConfig(t, ""))
	require.Error(t, err)
}

func TestValidate_AllValid(t *testing.T) {
	t.Parallel()

	path := greetingsArchive(t, t.TempDir())

	stdout, _, err := execute(t, NewValidateCommand, "validate", path, "--config", writeConfig(t, ""), "--color", "never")
	require.NoError(t, err)

	assert.Contains(t, stdout, "ok   "+path+":samples/s1_epoch_1.json")
	assert.Contains(t, stdout, "Compliance: 100% (1/1 entries valid)")
}

func TestValidate_InvalidEntryExitsWithStatusTwo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := archivetest.Write(t, dir, "mixed.eval",
		archivetest.Sample(t, "good", 1, archivetest.Msg{Role: "user", Content: "fine"}),
		archivetest.Entry{
			Name: "samples/bad_epoch_1.json",
			Data: `{"id":"bad","epoch":1,"messages":[{"role":"narrator","content":"x"}]}`,
		},
		archivetest.Entry{Name: "notes.txt", Data: "ignored"},
	)

	stdout, _, err := execute(t, NewValidateCommand,
		"validate", dir, "--config", writeConfig(t, ""), "--color", "never", "--quiet")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, exitCodeValidationFailure, exitErr.Code)

	assert.NotContains(t, stdout, "ok   ")
	assert.Contains(t, stdout, "FAIL "+path+":samples/bad_epoch_1.json")
	assert.Contains(t, stdout, "messages.0.role")
	assert.Contains(t, stdout, "Compliance: 50% (1/2 entries valid)")
	assert.NotContains(t, stdout, "notes.txt")
}

func TestValidate_UnreadableArchiveCountsAsFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "junk.eval")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	stdout, _, err := execute(t, NewValidateCommand, "validate", path, "--config", writeConfig(t, ""), "--color", "never")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, stdout, "FAIL "+path)
	assert.Contains(t, stdout, "Compliance: 0% (0/1 entries valid)")
}

func TestConfigCommand_PrintsEffectiveConfig(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, "search:\n  workers: 3\n")

	stdout, _, err := execute(t, NewConfigCommand, "config", "--config", cfg, "--log-level", "debug")
	require.NoError(t, err)

	assert.Contains(t, stdout, "workers: 3")
	assert.Contains(t, stdout, "epochs: all")
	assert.Contains(t, stdout, "level: debug")
	assert.Contains(t, stdout, "extension: .eval")
}

func TestConfigCommand_InvalidFile(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, NewConfigCommand, "config", "--config", writeConfig(t, "search:\n  workers: -2\n"))
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestMCPCommand_Exists(t *testing.T) {
	t.Parallel()

	cmd := NewMCPCommand(&GlobalOptions{})
	require.NotNil(t, cmd)
	assert.Equal(t, "mcp", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Contains(t, cmd.Long, "evalgrep_search")
}

func TestMCPCommand_DebugFlag(t *testing.T) {
	t.Parallel()

	flag := NewMCPCommand(&GlobalOptions{}).Flags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestExitError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())
}
