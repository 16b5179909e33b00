package domain

import "sort"

// Permission is a capability string from the fixed catalog (e.g. "tasks.create").
// Permissions are grouped by resource; "admin.access" subsumes every other
// permission at check time.
type Permission string

const (
	PermTasksCreate Permission = "tasks.create"
	PermTasksRead   Permission = "tasks.read"
	PermTasksUpdate Permission = "tasks.update"
	PermTasksDelete Permission = "tasks.delete"
	PermTasksAssign Permission = "tasks.assign"

	PermUsersCreate      Permission = "users.create"
	PermUsersRead        Permission = "users.read"
	PermUsersUpdate      Permission = "users.update"
	PermUsersDelete      Permission = "users.delete"
	PermUsersManageRoles Permission = "users.manage_roles"

	PermTeamsCreate Permission = "teams.create"
	PermTeamsRead   Permission = "teams.read"
	PermTeamsUpdate Permission = "teams.update"
	PermTeamsDelete Permission = "teams.delete"

	PermSettingsRead   Permission = "settings.read"
	PermSettingsUpdate Permission = "settings.update"

	// PermAdminAccess grants every permission in the catalog.
	PermAdminAccess Permission = "admin.access"
)

// catalog is the closed set of permissions known to the system. Any
// permission-bearing field may only ever contain values from this set.
var catalog = []Permission{
	PermTasksCreate, PermTasksRead, PermTasksUpdate, PermTasksDelete, PermTasksAssign,
	PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete, PermUsersManageRoles,
	PermTeamsCreate, PermTeamsRead, PermTeamsUpdate, PermTeamsDelete,
	PermSettingsRead, PermSettingsUpdate,
	PermAdminAccess,
}

var catalogSet = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		m[p] = struct{}{}
	}
	return m
}()

// Catalog returns the full permission catalog in declaration order.
// The returned slice is a copy.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// IsValid reports whether p is part of the catalog.
func (p Permission) IsValid() bool {
	_, ok := catalogSet[p]
	return ok
}

// NormalizePermissions deduplicates the input and silently drops values that
// are not in the catalog. Unknown permissions are never stored.
func NormalizePermissions(in []string) []Permission {
	seen := make(map[Permission]struct{}, len(in))
	out := make([]Permission, 0, len(in))
	for _, s := range in {
		p := Permission(s)
		if !p.IsValid() {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// PermissionSet is an unordered collection of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts p into the set.
func (s PermissionSet) Add(p Permission) {
	s[p] = struct{}{}
}

// AddAll inserts every permission from perms.
func (s PermissionSet) AddAll(perms []Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Has reports direct membership, without the admin bypass.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Allows reports whether the set grants p: true when the set contains
// admin.access (which subsumes all permissions) or p itself.
func (s PermissionSet) Allows(p Permission) bool {
	if s.Has(PermAdminAccess) {
		return true
	}
	return s.Has(p)
}

// AllowsAny reports whether the set grants at least one of perms.
func (s PermissionSet) AllowsAny(perms []Permission) bool {
	if s.Has(PermAdminAccess) {
		return true
	}
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Values returns the members sorted lexically, for stable serialization.
func (s PermissionSet) Values() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
