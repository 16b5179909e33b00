package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIsCopied(t *testing.T) {
	a := Catalog()
	b := Catalog()
	require.NotEmpty(t, a)

	a[0] = Permission("mutated")
	assert.NotEqual(t, a[0], b[0], "mutating a returned catalog must not leak")
}

func TestPermissionIsValid(t *testing.T) {
	tests := []struct {
		name string
		perm Permission
		want bool
	}{
		{"known permission", PermTasksCreate, true},
		{"admin access", PermAdminAccess, true},
		{"unknown", Permission("tasks.explode"), false},
		{"empty", Permission(""), false},
		{"case sensitive", Permission("Tasks.Create"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.perm.IsValid())
		})
	}
}

func TestNormalizePermissions(t *testing.T) {
	got := NormalizePermissions([]string{
		"tasks.create",
		"tasks.create",
		"not.a.permission",
		"users.read",
		"",
	})
	assert.Equal(t, []Permission{PermTasksCreate, PermUsersRead}, got)
}

func TestPermissionSetAllows(t *testing.T) {
	t.Run("direct grant", func(t *testing.T) {
		set := NewPermissionSet(PermTasksRead)
		assert.True(t, set.Allows(PermTasksRead))
		assert.False(t, set.Allows(PermTasksDelete))
	})

	t.Run("admin access grants everything", func(t *testing.T) {
		set := NewPermissionSet(PermAdminAccess)
		for _, p := range Catalog() {
			assert.True(t, set.Allows(p), "admin.access should satisfy %s", p)
		}
	})

	t.Run("empty set allows nothing", func(t *testing.T) {
		set := NewPermissionSet()
		assert.False(t, set.Allows(PermTasksRead))
		assert.False(t, set.AllowsAny([]Permission{PermTasksRead, PermUsersRead}))
	})
}

func TestPermissionSetValuesSorted(t *testing.T) {
	set := NewPermissionSet(PermUsersRead, PermAdminAccess, PermTasksCreate)
	assert.Equal(t, []Permission{PermAdminAccess, PermTasksCreate, PermUsersRead}, set.Values())
}
