package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
)

// ArchiveInfo describes one archive in an evalgrep_archives response.
type ArchiveInfo struct {
	File          string `json:"file"`
	Task          string `json:"task,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Model         string `json:"model,omitempty"`
	Dataset       string `json:"dataset,omitempty"`
	Epochs        int    `json:"epochs,omitempty"`
	Status        string `json:"status,omitempty"`
	SampleEntries int    `json:"sample_entries"`
	Error         string `json:"error,omitempty"`
}

// handleArchives processes evalgrep_archives tool calls.
func (s *Server) handleArchives(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ArchivesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validatePath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	files, err := s.discover(input.Path)
	if err != nil {
		return errorResult(err)
	}

	infos := make([]ArchiveInfo, 0, len(files))

	for _, path := range files {
		if ctx.Err() != nil {
			return errorResult(context.Cause(ctx))
		}

		infos = append(infos, s.describeArchive(path))
	}

	return jsonResult(infos)
}

// describeArchive never fails; problems land in ArchiveInfo.Error.
func (s *Server) describeArchive(path string) ArchiveInfo {
	info := ArchiveInfo{File: path}

	arc, err := s.opener(path)
	if err != nil {
		info.Error = err.Error()

		return info
	}
	defer func() { _ = arc.Close() }()

	for _, name := range arc.EntryNames() {
		_, ok, matchErr := s.matcher.Match(name)
		if ok || matchErr != nil {
			info.SampleEntries++
		}
	}

	data, err := arc.ReadEntry(evallog.HeaderEntry)
	if err != nil {
		return info
	}

	header, err := evallog.DecodeHeader(data)
	if err != nil {
		info.Error = err.Error()

		return info
	}

	info.Task = header.Eval.Task
	info.RunID = header.Eval.RunID
	info.Model = header.Eval.Model
	info.Dataset = header.Dataset.Name
	info.Epochs = header.Config.Epochs
	info.Status = header.Status

	return info
}
