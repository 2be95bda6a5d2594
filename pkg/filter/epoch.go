// Package filter holds the stateless predicates that select archive entries
// and messages during a search.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EpochAll is the textual form of the filter accepting every epoch.
const EpochAll = "all"

// ErrEpochSyntax indicates a malformed epoch specification.
var ErrEpochSyntax = errors.New("invalid epoch specification")

type epochKind uint8

const (
	epochKindAll epochKind = iota
	epochKindSet
	epochKindRange
)

// EpochFilter selects epochs: all of them, an explicit set, or an inclusive range.
// The zero value accepts every epoch.
type EpochFilter struct {
	kind epochKind
	set  map[uint32]struct{}
	low  uint32
	high uint32
}

// AllEpochs returns a filter accepting every epoch.
func AllEpochs() EpochFilter {
	return EpochFilter{kind: epochKindAll}
}

// EpochSet returns a filter accepting exactly the given epochs.
func EpochSet(epochs ...uint32) EpochFilter {
	set := make(map[uint32]struct{}, len(epochs))
	for _, epoch := range epochs {
		set[epoch] = struct{}{}
	}

	return EpochFilter{kind: epochKindSet, set: set}
}

// EpochRange returns a filter accepting low through high inclusive.
func EpochRange(low, high uint32) EpochFilter {
	return EpochFilter{kind: epochKindRange, low: low, high: high}
}

// ParseEpochFilter parses "all", an inclusive range "low-high", or a
// comma-separated list "1,3,7".
func ParseEpochFilter(text string) (EpochFilter, error) {
	spec := strings.TrimSpace(text)

	if spec == EpochAll {
		return AllEpochs(), nil
	}

	if strings.Contains(spec, "-") {
		return parseEpochRange(spec)
	}

	tokens := strings.Split(spec, ",")
	epochs := make([]uint32, 0, len(tokens))

	for _, token := range tokens {
		epoch, err := parseEpoch(token)
		if err != nil {
			return EpochFilter{}, err
		}

		epochs = append(epochs, epoch)
	}

	return EpochSet(epochs...), nil
}

func parseEpochRange(spec string) (EpochFilter, error) {
	parts := strings.Split(spec, "-")
	if len(parts) != 2 {
		return EpochFilter{}, fmt.Errorf("%w: range %q must have exactly two bounds", ErrEpochSyntax, spec)
	}

	low, err := parseEpoch(parts[0])
	if err != nil {
		return EpochFilter{}, err
	}

	high, err := parseEpoch(parts[1])
	if err != nil {
		return EpochFilter{}, err
	}

	return EpochRange(low, high), nil
}

func parseEpoch(token string) (uint32, error) {
	trimmed := strings.TrimSpace(token)

	value, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrEpochSyntax, trimmed)
	}

	return uint32(value), nil
}

// Matches reports whether epoch passes the filter.
func (f EpochFilter) Matches(epoch uint32) bool {
	switch f.kind {
	case epochKindSet:
		_, ok := f.set[epoch]

		return ok
	case epochKindRange:
		return f.low <= epoch && epoch <= f.high
	default:
		return true
	}
}

// IsAll reports whether the filter accepts every epoch.
func (f EpochFilter) IsAll() bool {
	return f.kind == epochKindAll
}

// String renders the filter in the syntax accepted by ParseEpochFilter.
func (f EpochFilter) String() string {
	switch f.kind {
	case epochKindSet:
		epochs := make([]uint32, 0, len(f.set))
		for epoch := range f.set {
			epochs = append(epochs, epoch)
		}

		slices.Sort(epochs)

		parts := make([]string, len(epochs))
		for i, epoch := range epochs {
			parts[i] = strconv.FormatUint(uint64(epoch), 10)
		}

		return strings.Join(parts, ",")
	case epochKindRange:
		return strconv.FormatUint(uint64(f.low), 10) + "-" + strconv.FormatUint(uint64(f.high), 10)
	default:
		return EpochAll
	}
}
