package mcp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/evalgrep/pkg/archive"
)

// Tool name constants.
const (
	ToolNameSearch   = "evalgrep_search"
	ToolNameArchives = "evalgrep_archives"
)

// Match limits.
const (
	// DefaultMatchLimit caps returned messages when the caller gives no limit.
	DefaultMatchLimit = 200

	// MaxMatchLimit is the largest limit a caller may request.
	MaxMatchLimit = 5000
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrPathNotAbsolute indicates the path is not an absolute path.
	ErrPathNotAbsolute = errors.New("path must be an absolute path")
	// ErrPathNotFound indicates the path does not exist.
	ErrPathNotFound = errors.New("path does not exist")
	// ErrInvalidLimit indicates a limit outside 0..MaxMatchLimit.
	ErrInvalidLimit = errors.New("limit out of range")
)

// Input types (auto-generate JSON schemas via struct tags).

// SearchInput is the input schema for the evalgrep_search tool.
type SearchInput struct {
	Epochs       string   `json:"epochs,omitempty"        jsonschema:"epochs to search: all, a range like 1-3 or a list like 1,4 (default: all)"`
	Limit        int      `json:"limit,omitempty"         jsonschema:"maximum number of messages to return (default: 200, max: 5000)"`
	MessageRegex string   `json:"message_regex,omitempty" jsonschema:"regular expression matched against message content"`
	Path         string   `json:"path"                    jsonschema:"absolute path to an archive or a directory of archives"`
	Roles        []string `json:"roles,omitempty"         jsonschema:"roles to keep: system, user, assistant, tool (default: all)"`
	Samples      string   `json:"samples,omitempty"       jsonschema:"regular expression matched against sample ids"`
}

// ArchivesInput is the input schema for the evalgrep_archives tool.
type ArchivesInput struct {
	Path string `json:"path" jsonschema:"absolute path to an archive or a directory of archives"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validatePath checks the path constraints shared by every tool.
func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
	}

	return nil
}

// discover lists the archives under path.
func (s *Server) discover(path string) ([]string, error) {
	files, err := archive.Discover(path, s.extension)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}

		return nil, fmt.Errorf("discover archives: %w", err)
	}

	return files, nil
}
