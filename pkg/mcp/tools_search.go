package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/evalgrep/pkg/filter"
	"github.com/Sumatoshi-tech/evalgrep/pkg/search"
)

// Match is one retained message in an evalgrep_search response.
type Match struct {
	File     string `json:"file"`
	SampleID string `json:"sample_id"`
	Epoch    int64  `json:"epoch"`
	Index    int    `json:"index"`
	Role     string `json:"role"`
	Content  string `json:"content"`
}

// SearchOutput is the evalgrep_search response body.
type SearchOutput struct {
	Matches   []Match  `json:"matches"`
	Truncated bool     `json:"truncated"`
	Archives  int64    `json:"archives"`
	Samples   int64    `json:"samples"`
	Errors    []string `json:"errors,omitempty"`
}

// handleSearch processes evalgrep_search tool calls.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input SearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateSearchInput(input)
	if err != nil {
		return errorResult(err)
	}

	criteria, err := filter.Query{
		MessageRegex: input.MessageRegex,
		Samples:      input.Samples,
		Epochs:       input.Epochs,
		Roles:        input.Roles,
	}.Compile()
	if err != nil {
		return errorResult(err)
	}

	files, err := s.discover(input.Path)
	if err != nil {
		return errorResult(err)
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultMatchLimit
	}

	collector := &search.Collector{Limit: limit}

	pipeline := search.New(search.Config{Workers: s.workers}, search.Deps{
		Opener:    s.opener,
		Matcher:   s.matcher,
		Selection: criteria.Selection,
		Keep:      criteria.Messages.Predicate(),
		Sink:      collector,
		Reporter:  collector,
		Logger:    s.logger,
		Tracer:    s.tracer,
		Metrics:   s.searchMetrics,
	})

	stats, err := pipeline.Run(ctx, files)
	if err != nil {
		return errorResult(fmt.Errorf("search %s: %w", input.Path, err))
	}

	return jsonResult(buildSearchOutput(collector, stats, limit))
}

func validateSearchInput(input SearchInput) error {
	err := validatePath(input.Path)
	if err != nil {
		return err
	}

	if input.Limit < 0 || input.Limit > MaxMatchLimit {
		return fmt.Errorf("%w: %d (max %d)", ErrInvalidLimit, input.Limit, MaxMatchLimit)
	}

	return nil
}

// buildSearchOutput flattens collected results into at most limit matches,
// ordered by archive path and then by position inside each archive.
func buildSearchOutput(collector *search.Collector, stats search.Stats, limit int) SearchOutput {
	results := sortByPath(collector.Results())

	out := SearchOutput{
		Matches:   make([]Match, 0, min(limit, int(stats.Matched))),
		Truncated: collector.Stopped(),
		Archives:  stats.Files,
		Samples:   stats.Samples,
	}

	for _, result := range results {
		for _, sample := range result.Samples {
			for index, msg := range sample.Sample.Messages {
				if msg == nil {
					continue
				}

				if len(out.Matches) == limit {
					out.Truncated = true

					break
				}

				out.Matches = append(out.Matches, Match{
					File:     result.Path,
					SampleID: sample.Sample.ID,
					Epoch:    sample.Sample.Epoch,
					Index:    index,
					Role:     msg.Role.String(),
					Content:  msg.Content,
				})
			}
		}
	}

	for _, err := range collector.ErrorList() {
		out.Errors = append(out.Errors, err.Error())
	}

	return out
}

func sortByPath(results []*search.FileResult) []*search.FileResult {
	slices.SortFunc(results, func(a, b *search.FileResult) int {
		return strings.Compare(a.Path, b.Path)
	})

	return results
}
