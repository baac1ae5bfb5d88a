package domain

import (
	"fmt"
	"strings"
)

// Role is the single role an authenticated principal holds.
type Role string

const (
	RoleUser          Role = "USER"
	RoleAdmin         Role = "ADMIN"
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleAdministrator Role = "ADMINISTRATOR"
)

var knownRoles = map[Role]struct{}{
	RoleUser:          {},
	RoleAdmin:         {},
	RoleSuperAdmin:    {},
	RoleAdministrator: {},
}

// ParseRole maps a raw role name onto the closed Role enumeration.
// Names are matched case-insensitively; anything else is a bad request.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role %q: %w", s, ErrBadRequest)
	}
	return r, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string { return string(r) }
