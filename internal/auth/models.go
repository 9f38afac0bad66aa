// Package auth issues and validates bearer tokens for the admin API.
package auth

import "slices"

// Role is an admin API permission level.
type Role string

const (
	// RoleAdmin may read and change everything.
	RoleAdmin Role = "admin"
	// RoleReader may only read.
	RoleReader Role = "reader"
)

// ParseRole returns the role named by s.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleReader:
		return Role(s), true
	}
	return "", false
}

// Principal is the authenticated caller of an admin request.
type Principal struct {
	Subject string
	Roles   []Role
}

// Has reports whether the principal holds role. Admins hold every role.
func (p *Principal) Has(role Role) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, RoleAdmin) || slices.Contains(p.Roles, role)
}
