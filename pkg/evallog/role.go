package evallog

import "fmt"

// Role identifies the author of a chat message.
type Role uint8

// Message roles. The zero value is not a valid role.
const (
	RoleSystem Role = iota + 1
	RoleUser
	RoleAssistant
	RoleTool
)

var roleTokens = map[Role]string{
	RoleSystem:    "system",
	RoleUser:      "user",
	RoleAssistant: "assistant",
	RoleTool:      "tool",
}

// Roles returns every valid role in declaration order.
func Roles() []Role {
	return []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool}
}

// ParseRole converts a wire token ("system", "user", "assistant", "tool") to a Role.
// Only the exact lowercase tokens are accepted.
func ParseRole(token string) (Role, error) {
	for role, name := range roleTokens {
		if name == token {
			return role, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, token)
}

// String returns the wire token of the role.
func (r Role) String() string {
	name, ok := roleTokens[r]
	if !ok {
		return fmt.Sprintf("role(%d)", uint8(r))
	}

	return name
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleTokens[r]

	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}

	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}
