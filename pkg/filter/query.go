package filter

import (
	"regexp"
)

// Query is the textual form of a search as typed on the command line or sent
// by a tool call. Empty fields select everything.
type Query struct {
	MessageRegex string
	Samples      string
	Epochs       string
	Roles        []string
}

// Criteria is a compiled Query.
type Criteria struct {
	Selection Selection
	Messages  MessageFilter
}

// Compile validates every field of q and builds the matching criteria.
// Errors wrap ErrInvalidPattern, ErrEpochSyntax or evallog.ErrUnknownRole.
func (q Query) Compile() (Criteria, error) {
	content, err := CompilePattern("message regex", q.MessageRegex)
	if err != nil {
		return Criteria{}, err
	}

	samples, err := CompilePattern("sample regex", q.Samples)
	if err != nil {
		return Criteria{}, err
	}

	epochs := AllEpochs()

	if q.Epochs != "" {
		epochs, err = ParseEpochFilter(q.Epochs)
		if err != nil {
			return Criteria{}, err
		}
	}

	roles, err := ParseRoles(q.Roles)
	if err != nil {
		return Criteria{}, err
	}

	return Criteria{
		Selection: Selection{SampleIDs: SampleIDFilter{Pattern: samples}, Epochs: epochs},
		Messages:  MessageFilter{Roles: roles, Content: content},
	}, nil
}

// Highlight returns the pattern whose matches are emphasized in output, or nil.
func (c Criteria) Highlight() *regexp.Regexp {
	return c.Messages.Content
}
