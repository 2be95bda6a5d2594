package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
	"github.com/Sumatoshi-tech/evalgrep/pkg/mcp"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
	"github.com/Sumatoshi-tech/evalgrep/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(global *GlobalOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes archive search as tools that AI agents can discover
and invoke:
  - evalgrep_search: search archives for messages by content, sample id, epoch and role
  - evalgrep_archives: list archives with their run header and sample entry count

Logs are written to stderr as JSON; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := global.Load(cobraCmd)
			if err != nil {
				return err
			}

			cfg.Logging.JSON = true

			if debug {
				cfg.Logging.Level = "debug"
				cfg.Telemetry.DebugTrace = true
			}

			err = validate(cfg)
			if err != nil {
				return err
			}

			maxEntryBytes, err := cfg.Search.MaxEntryBytes()
			if err != nil {
				return err
			}

			tel, err := startTelemetry(cobraCmd, cfg, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer tel.shutdown()

			red, err := observability.NewREDMetrics(tel.providers.Meter)
			if err != nil {
				return err
			}

			searchMetrics, err := observability.NewSearchMetrics(tel.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:        tel.providers.Logger,
				Metrics:       red,
				SearchMetrics: searchMetrics,
				Tracer:        tel.providers.Tracer,
				Opener:        archive.ZipOpener(archive.WithMaxEntrySize(maxEntryBytes)),
				Extension:     cfg.Search.Extension,
				Workers:       cfg.Search.Workers,
				Version:       version.Version,
			})

			ctx, stop := signal.NotifyContext(commandContext(cobraCmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
