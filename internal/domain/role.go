package domain

import "fmt"

// Role is the single authorization role carried by a user
type Role string

const (
	RoleUser      Role = "ROLE_USER"
	RolePM        Role = "ROLE_ESG_PM"
	RoleExecutive Role = "ROLE_EXECUTIVE"
	RoleAdmin     Role = "ROLE_ADMIN"
)

// Roles lists every known role in ascending privilege order
var Roles = []Role{RoleUser, RolePM, RoleExecutive, RoleAdmin}

// ParseRole converts a raw string into a known Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePM, RoleExecutive, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanManageUsers reports whether the role may use the admin user endpoints
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser, RolePM, RoleExecutive:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
