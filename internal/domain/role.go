package domain

import "strings"

// Role is a coarse classification carried directly on a user, distinct from
// team-granted permissions. Every user holds at least one role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	default:
		return false
	}
}

// NormalizeRoles lowercases, trims, deduplicates, and drops unknown role
// values. The result may be empty; callers enforce the at-least-one-role
// invariant.
func NormalizeRoles(in []string) []Role {
	seen := make(map[Role]struct{}, len(in))
	out := make([]Role, 0, len(in))
	for _, s := range in {
		r := Role(strings.ToLower(strings.TrimSpace(s)))
		if !r.IsValid() {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ContainsRole reports whether roles includes r.
func ContainsRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}
