package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the identity role enum of the ident module. Values not listed
// here are preserved as-is on decode.
type Role int32

const (
	RoleUnspecified Role = 0
	RoleGuest       Role = 1
	RoleCitizen     Role = 2
	RoleValidator   Role = 3
)

var roleNames = map[Role]string{
	RoleUnspecified: "ROLE_UNSPECIFIED",
	RoleGuest:       "ROLE_GUEST",
	RoleCitizen:     "ROLE_CITIZEN",
	RoleValidator:   "ROLE_VALIDATOR",
}

// String implements fmt.Stringer
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "ROLE_" + strconv.Itoa(int(r))
}

// ParseRole accepts "ROLE_CITIZEN", "citizen" or a decimal number
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Role(n), nil
	}

	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "ROLE_") {
		upper = "ROLE_" + upper
	} else if n, err := strconv.ParseInt(upper[len("ROLE_"):], 10, 32); err == nil {
		return Role(n), nil
	}
	for role, name := range roleNames {
		if name == upper {
			return role, nil
		}
	}
	return RoleUnspecified, fmt.Errorf("unknown role %q", s)
}

// MarshalText renders the role by name so JSON carries "ROLE_CITIZEN"
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts anything ParseRole does
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
