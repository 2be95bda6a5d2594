// Package mcp implements a Model Context Protocol server exposing archive
// search as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "evalgrep"

	// defaultServerVersion is reported when ServerDeps.Version is empty.
	defaultServerVersion = "dev"

	// defaultExtension is the archive extension searched under directories.
	defaultExtension = ".eval"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// SearchMetrics records per-run search counters. Nil disables them.
	SearchMetrics *observability.SearchMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Opener opens archives. Nil uses archive.ZipOpener with no size limit.
	Opener archive.Opener

	// Extension selects archives when a tool is given a directory. Empty means ".eval".
	Extension string

	// Workers bounds search parallelism. Zero means host parallelism.
	Workers int

	// Version is the implementation version announced to clients.
	Version string
}

// Server wraps the MCP SDK server with the archive tools.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer

	logger        *slog.Logger
	searchMetrics *observability.SearchMetrics
	opener        archive.Opener
	matcher       *evallog.EntryMatcher
	extension     string
	workers       int
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	version := deps.Version
	if version == "" {
		version = defaultServerVersion
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		},
		opts,
	)

	srv := &Server{
		inner:         inner,
		tools:         make([]string, 0, toolCount),
		metrics:       deps.Metrics,
		tracer:        deps.Tracer,
		logger:        deps.Logger,
		searchMetrics: deps.SearchMetrics,
		opener:        deps.Opener,
		matcher:       evallog.NewEntryMatcher(),
		extension:     deps.Extension,
		workers:       deps.Workers,
	}

	if srv.opener == nil {
		srv.opener = archive.ZipOpener()
	}

	if srv.extension == "" {
		srv.extension = defaultExtension
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSearch,
		Description: searchToolDescription,
	}, withMetrics(s.metrics, ToolNameSearch, withTracing(s.tracer, ToolNameSearch, s.handleSearch)))

	s.trackTool(ToolNameSearch)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameArchives,
		Description: archivesToolDescription,
	}, withMetrics(s.metrics, ToolNameArchives, withTracing(s.tracer, ToolNameArchives, s.handleArchives)))

	s.trackTool(ToolNameArchives)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	operation := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, operation)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, operation, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	searchToolDescription = "Search evaluation-run archives (.eval zip files) for transcript messages. " +
		"Filters by message content regex, sample id regex, epochs (all, 1-3, 1,4) and roles " +
		"(system, user, assistant, tool). Returns matching messages with their sample id, epoch and index."

	archivesToolDescription = "List evaluation-run archives under a path with their task, run id, model, " +
		"dataset, configured epochs and number of sample entries."
)
