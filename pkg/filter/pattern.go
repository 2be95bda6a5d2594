package filter

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidPattern indicates a regular expression that failed to compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// CompilePattern compiles an optional regular expression.
// An empty expression yields nil, which every matcher treats as "match all".
func CompilePattern(name, expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil //nolint:nilnil // absent pattern is a valid state
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrInvalidPattern, name, err)
	}

	return re, nil
}

// SampleIDFilter selects samples whose id contains a match of Pattern.
// A nil Pattern accepts every id.
type SampleIDFilter struct {
	Pattern *regexp.Regexp
}

// Matches reports whether id passes the filter.
func (f SampleIDFilter) Matches(id string) bool {
	return f.Pattern == nil || f.Pattern.MatchString(id)
}

// Selection combines the filters applied to entry names before decoding.
type Selection struct {
	SampleIDs SampleIDFilter
	Epochs    EpochFilter
}

// Matches reports whether a sample with the given id and epoch is selected.
func (s Selection) Matches(id string, epoch uint32) bool {
	return s.Epochs.Matches(epoch) && s.SampleIDs.Matches(id)
}
