package commands

import (
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
	"github.com/Sumatoshi-tech/evalgrep/pkg/config"
	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
	"github.com/Sumatoshi-tech/evalgrep/pkg/render"
)

// complianceMax is the maximum compliance percentage.
const complianceMax = 100

// exitCodeValidationFailure is the exit code when any entry fails validation.
const exitCodeValidationFailure = 2

// ValidateCommand holds flag values and dependencies for the validate command.
type ValidateCommand struct {
	global *GlobalOptions

	ext   string
	color string
	quiet bool

	discover archiveDiscoverer
}

// validationTally counts entry verdicts across archives.
type validationTally struct {
	entries int
	valid   int
}

func (t validationTally) compliance() int {
	if t.entries == 0 {
		return complianceMax
	}

	return t.valid * complianceMax / t.entries
}

type verdictColors struct {
	pass *color.Color
	fail *color.Color
	note *color.Color
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(global *GlobalOptions) *cobra.Command {
	return newValidateCommandWithDeps(global, archive.Discover)
}

func newValidateCommandWithDeps(global *GlobalOptions, discover archiveDiscoverer) *cobra.Command {
	vc := &ValidateCommand{global: global, discover: discover}

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate sample entries against the sample schema",
		Long: `Validate every sample entry of one archive, or of every archive under a
directory, against the embedded sample record schema.

Prints one verdict per entry and the overall compliance percentage.
Exits with status 2 when any entry is invalid.

Examples:
  evalgrep validate run.eval
  evalgrep validate logs/ --quiet`,
		Args: cobra.ExactArgs(1),
		RunE: vc.run,
	}

	cmd.Flags().StringVar(&vc.ext, "ext", config.DefaultExtension, "Archive extension searched under directories")
	cmd.Flags().StringVar(&vc.color, "color", config.DefaultColor, "Color output: auto, always, never")
	cmd.Flags().BoolVarP(&vc.quiet, "quiet", "q", false, "Only print failing entries and the compliance line")

	return cmd
}

func (vc *ValidateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := vc.global.Load(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("ext") {
		cfg.Search.Extension = vc.ext
	}

	if cmd.Flags().Changed("color") {
		cfg.Output.Color = vc.color
	}

	err = validate(cfg)
	if err != nil {
		return err
	}

	mode, err := render.ParseColorMode(cfg.Output.Color)
	if err != nil {
		return err
	}

	maxEntryBytes, err := cfg.Search.MaxEntryBytes()
	if err != nil {
		return err
	}

	files, err := vc.discover(args[0], cfg.Search.Extension)
	if err != nil {
		return err
	}

	tel, err := startTelemetry(cmd, cfg, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer tel.shutdown()

	colors := verdictColors{
		pass: render.NewColor(mode, color.FgGreen),
		fail: render.NewColor(mode, color.FgRed),
		note: render.NewColor(mode, color.FgYellow),
	}

	out := cmd.OutOrStdout()
	opener := archive.ZipOpener(archive.WithMaxEntrySize(maxEntryBytes))
	matcher := evallog.NewEntryMatcher()

	var tally validationTally

	for _, path := range files {
		vc.validateArchive(out, colors, opener, matcher, path, &tally)
	}

	tel.providers.Logger.InfoContext(commandContext(cmd), "validation finished",
		"archives", len(files), "entries", tally.entries, "valid", tally.valid)

	if tally.valid == tally.entries {
		colors.pass.Fprintf(out, "Compliance: %d%% (%d/%d entries valid)\n", complianceMax, tally.valid, tally.entries)

		return nil
	}

	colors.note.Fprintf(out, "Compliance: %d%% (%d/%d entries valid)\n", tally.compliance(), tally.valid, tally.entries)

	return &ExitError{Code: exitCodeValidationFailure}
}

// validateArchive checks every sample entry of one archive. An archive that
// cannot be opened counts as one failed entry.
func (vc *ValidateCommand) validateArchive(
	out io.Writer,
	colors verdictColors,
	opener archive.Opener,
	matcher *evallog.EntryMatcher,
	path string,
	tally *validationTally,
) {
	arc, err := opener(path)
	if err != nil {
		tally.entries++

		colors.fail.Fprintf(out, "FAIL %s\n", path)
		colors.note.Fprintf(out, "  - %v\n", err)

		return
	}
	defer func() { _ = arc.Close() }()

	for _, name := range arc.EntryNames() {
		_, ok, matchErr := matcher.Match(name)
		if !ok && matchErr == nil {
			continue
		}

		tally.entries++

		problems := vc.entryProblems(arc, name, matchErr)
		if len(problems) == 0 {
			tally.valid++

			if !vc.quiet {
				colors.pass.Fprintf(out, "ok   %s:%s\n", path, name)
			}

			continue
		}

		colors.fail.Fprintf(out, "FAIL %s:%s\n", path, name)

		for _, problem := range problems {
			colors.note.Fprintf(out, "  - %s\n", problem)
		}
	}
}

// entryProblems returns the reasons an entry is invalid, or nil.
func (vc *ValidateCommand) entryProblems(arc archive.Archive, name string, matchErr error) []string {
	if matchErr != nil {
		return []string{matchErr.Error()}
	}

	data, err := arc.ReadEntry(name)
	if err != nil {
		return []string{err.Error()}
	}

	result, err := evallog.ValidateSample(data)
	if err != nil {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(result.Violations))
	for _, violation := range result.Violations {
		problems = append(problems, violation.String())
	}

	return problems
}
