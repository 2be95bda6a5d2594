package evallog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// samplesEntryPattern matches "samples/<sample_id>_epoch_<epoch>.json".
// The id group is greedy, so it extends to the last "_epoch_".
const samplesEntryPattern = `^samples/(.*)_epoch_(\d+)\.json$`

// epochBits is the bit size of an epoch parsed from an entry name.
const epochBits = 32

// SampleKey identifies a sample by id and epoch.
type SampleKey struct {
	ID    string
	Epoch uint32
}

// EntryMatcher recognizes sample entries by name.
// A matcher is immutable and safe for concurrent use.
type EntryMatcher struct {
	pattern *regexp.Regexp
}

// NewEntryMatcher compiles the sample entry naming pattern.
func NewEntryMatcher() *EntryMatcher {
	return &EntryMatcher{pattern: regexp.MustCompile(samplesEntryPattern)}
}

// Match extracts the sample key from an entry name.
// Names that do not follow the pattern return ok == false and a nil error.
// An epoch that does not fit in 32 bits returns ErrEpochOverflow.
func (m *EntryMatcher) Match(name string) (SampleKey, bool, error) {
	groups := m.pattern.FindStringSubmatch(name)
	if groups == nil {
		return SampleKey{}, false, nil
	}

	epoch, err := strconv.ParseUint(groups[2], 10, epochBits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return SampleKey{}, false, fmt.Errorf("%w: %s in %q", ErrEpochOverflow, groups[2], name)
		}

		return SampleKey{}, false, fmt.Errorf("parse epoch in %q: %w", name, err)
	}

	return SampleKey{ID: groups[1], Epoch: uint32(epoch)}, true, nil
}

// EntryName builds the archive entry name of a sample.
func EntryName(id string, epoch uint32) string {
	return "samples/" + id + "_epoch_" + strconv.FormatUint(uint64(epoch), 10) + ".json"
}
