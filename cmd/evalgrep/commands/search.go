package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
	"github.com/Sumatoshi-tech/evalgrep/pkg/config"
	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/filter"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
	"github.com/Sumatoshi-tech/evalgrep/pkg/render"
	"github.com/Sumatoshi-tech/evalgrep/pkg/search"
)

type archiveDiscoverer func(root, ext string) ([]string, error)

type terminalDetector func(w io.Writer) bool

// SearchCommand holds flag values and dependencies for the search command.
type SearchCommand struct {
	global *GlobalOptions

	messageRegex string
	samples      string
	epochs       string
	roles        []string
	threads      int
	ext          string
	color        string
	silent       bool
	summary      bool
	maxEntrySize string
	metricsFile  string

	discover   archiveDiscoverer
	isTerminal terminalDetector
}

// NewSearchCommand creates the search command.
func NewSearchCommand(global *GlobalOptions) *cobra.Command {
	return newSearchCommandWithDeps(global, archive.Discover, isTerminalWriter)
}

func newSearchCommandWithDeps(global *GlobalOptions, discover archiveDiscoverer, isTerminal terminalDetector) *cobra.Command {
	sc := &SearchCommand{
		global:     global,
		discover:   discover,
		isTerminal: isTerminal,
	}

	cmd := &cobra.Command{
		Use:   "search <path>",
		Short: "Search archives for matching messages",
		Long: `Search one archive, or every archive under a directory, and print each
message that passes the filters as a block headed by its archive, sample id,
epoch and role.

Examples:
  evalgrep search logs/ -m 'rm -rf'
  evalgrep search run.eval -e 2-3 -r assistant,tool
  evalgrep search logs/ -s '^math_' --summary`,
		Args: cobra.ExactArgs(1),
		RunE: sc.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&sc.messageRegex, "message-regex", "m", "", "Regular expression matched against message content")
	flags.StringVarP(&sc.samples, "samples", "s", "", "Regular expression matched against sample ids")
	flags.StringVarP(&sc.epochs, "epochs", "e", config.DefaultEpochs, "Epochs to search: all, a range like 1-3, or a list like 1,4")
	flags.StringSliceVarP(&sc.roles, "roles", "r", nil, "Roles to keep: system, user, assistant, tool (default all)")
	flags.IntVarP(&sc.threads, "threads", "t", config.DefaultWorkers, "Parallel workers (0 = CPU count)")
	flags.StringVar(&sc.ext, "ext", config.DefaultExtension, "Archive extension searched under directories")
	flags.StringVar(&sc.color, "color", config.DefaultColor, "Color output: auto, always, never")
	flags.BoolVar(&sc.silent, "silent", false, "Disable progress output")
	flags.BoolVar(&sc.summary, "summary", config.DefaultSummary, "Print a per-archive summary table to stderr")
	flags.StringVar(&sc.maxEntrySize, "max-entry-size", config.DefaultMaxEntrySize,
		"Skip entries larger than this uncompressed size (e.g. 64MB; 0 = no limit)")
	flags.StringVar(&sc.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")

	return cmd
}

func (sc *SearchCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := sc.global.Load(cmd)
	if err != nil {
		return err
	}

	sc.applyFlags(cmd, cfg)

	err = validate(cfg)
	if err != nil {
		return err
	}

	criteria, err := filter.Query{
		MessageRegex: cfg.Search.MessageRegex,
		Samples:      cfg.Search.Samples,
		Epochs:       cfg.Search.Epochs,
		Roles:        cfg.Search.Roles,
	}.Compile()
	if err != nil {
		return err
	}

	colorMode, err := render.ParseColorMode(cfg.Output.Color)
	if err != nil {
		return err
	}

	maxEntryBytes, err := cfg.Search.MaxEntryBytes()
	if err != nil {
		return err
	}

	files, err := sc.discover(args[0], cfg.Search.Extension)
	if err != nil {
		return err
	}

	tel, err := startTelemetry(cmd, cfg, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer tel.shutdown()

	searchMetrics, err := observability.NewSearchMetrics(tel.meter())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := tel.providers.Logger
	errOut := cmd.ErrOrStderr()

	if len(files) == 0 {
		logger.WarnContext(ctx, "no archives found", "path", args[0], "extension", cfg.Search.Extension)
	}

	printer := render.NewPrinter(cmd.OutOrStdout(), errOut,
		render.WithHighlight(criteria.Highlight()),
		render.WithColorMode(colorMode),
	)

	sinks := search.MultiSink{printer}
	reporters := search.MultiReporter{printer}

	var summary *render.Summary

	if cfg.Output.Summary {
		summary = render.NewSummary()
		sinks = append(sinks, summary)
		reporters = append(reporters, summary)
	}

	pipeline := search.New(search.Config{Workers: cfg.Search.Workers}, search.Deps{
		Opener:    archive.ZipOpener(archive.WithMaxEntrySize(maxEntryBytes)),
		Matcher:   evallog.NewEntryMatcher(),
		Selection: criteria.Selection,
		Keep:      criteria.Messages.Predicate(),
		Sink:      sinks,
		Reporter:  reporters,
		Progress:  sc.progress(cfg, errOut),
		Logger:    logger,
		Tracer:    tel.providers.Tracer,
		Metrics:   searchMetrics,

		ReadHeaders: summary != nil,
	})

	logger.DebugContext(ctx, "search starting",
		"archives", len(files), "workers", pipeline.Workers(), "epochs", criteria.Selection.Epochs.String())

	stats, err := pipeline.Run(ctx, files)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "search finished",
		"archives", stats.Files, "failed_archives", stats.FailedFiles,
		"samples", stats.Samples, "failed_entries", stats.FailedEntries,
		"matched", stats.Matched, "elapsed", stats.Elapsed)

	if summary != nil {
		err = summary.Render(errOut, stats)
		if err != nil {
			return err
		}
	}

	return tel.writeMetrics()
}

// applyFlags copies explicitly set flags over the loaded configuration.
func (sc *SearchCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("message-regex") {
		cfg.Search.MessageRegex = sc.messageRegex
	}

	if flags.Changed("samples") {
		cfg.Search.Samples = sc.samples
	}

	if flags.Changed("epochs") {
		cfg.Search.Epochs = sc.epochs
	}

	if flags.Changed("roles") {
		cfg.Search.Roles = sc.roles
	}

	if flags.Changed("threads") {
		cfg.Search.Workers = sc.threads
	}

	if flags.Changed("ext") {
		cfg.Search.Extension = sc.ext
	}

	if flags.Changed("max-entry-size") {
		cfg.Search.MaxEntrySize = sc.maxEntrySize
	}

	if flags.Changed("color") {
		cfg.Output.Color = sc.color
	}

	if flags.Changed("silent") {
		cfg.Output.Progress = !sc.silent
	}

	if flags.Changed("summary") {
		cfg.Output.Summary = sc.summary
	}

	if flags.Changed("metrics-file") {
		cfg.Output.MetricsFile = sc.metricsFile
	}
}

// progress draws a tracker only on an interactive error stream.
func (sc *SearchCommand) progress(cfg *config.Config, errOut io.Writer) search.Progress {
	if !cfg.Output.Progress || !sc.isTerminal(errOut) {
		return search.NoProgress{}
	}

	return render.NewProgressBar(errOut)
}

func isTerminalWriter(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// commandContext is cmd's context, or Background before Execute has run.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
