package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
)

// MessageFilter selects messages by role and content.
// Empty Roles accepts every role; a nil Content accepts every message.
type MessageFilter struct {
	Roles   []evallog.Role
	Content *regexp.Regexp
}

// Predicate returns the message predicate handed to the sample decoder.
func (f MessageFilter) Predicate() evallog.MessagePredicate {
	roles := slices.Clone(f.Roles)
	content := f.Content

	return func(msg evallog.Message) bool {
		if len(roles) > 0 && !slices.Contains(roles, msg.Role) {
			return false
		}

		return content == nil || content.MatchString(msg.Content)
	}
}

// ParseRoles converts user-supplied role tokens to roles, dropping duplicates.
// Tokens may themselves be comma-separated lists and are matched
// case-insensitively.
func ParseRoles(tokens []string) ([]evallog.Role, error) {
	roles := make([]evallog.Role, 0, len(tokens))

	for _, token := range tokens {
		for part := range strings.SplitSeq(token, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}

			role, err := evallog.ParseRole(part)
			if err != nil {
				return nil, fmt.Errorf("parse roles: %w", err)
			}

			if !slices.Contains(roles, role) {
				roles = append(roles, role)
			}
		}
	}

	return roles, nil
}
