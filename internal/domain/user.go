package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// User is an authenticated principal. The password hash is never serialized
// outward. Effective permissions are the union of custom permissions, the
// permissions of every active team the user belongs to, and the role-implied
// admin.access grant.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`

	// Roles is never empty for a well-formed user; the system always retains
	// at least one user holding the admin role.
	Roles []Role `json:"roles" db:"roles"`

	Teams []TeamRef `json:"-" db:"-"`

	// CustomPermissions are directly granted, bypassing team membership.
	CustomPermissions []Permission `json:"customPermissions" db:"custom_permissions"`

	// Account-lock bookkeeping, maintained by the login path.
	LoginAttempts int        `json:"-" db:"login_attempts"`
	LockUntil     *time.Time `json:"-" db:"lock_until"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return ContainsRole(u.Roles, RoleAdmin)
}

// HasRole reports whether the user's role set intersects the given roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, want := range roles {
		if ContainsRole(u.Roles, want) {
			return true
		}
	}
	return false
}

// IsLocked reports whether the account is under a login lockout at the given
// instant.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

// EffectivePermissions computes the union of the user's custom permissions,
// the permissions of every resolved active team, and admin.access when the
// role set contains admin. Unresolved team references contribute nothing;
// callers that need team grants resolve the references first. A user record
// missing required fields (e.g. no roles) yields an empty set, never an
// error.
func (u *User) EffectivePermissions() PermissionSet {
	perms := NewPermissionSet(u.CustomPermissions...)
	for _, ref := range u.Teams {
		team, ok := ref.Team()
		if !ok || !team.IsActive {
			continue
		}
		perms.AddAll(team.Permissions)
	}
	if u.IsAdmin() {
		perms.Add(PermAdminAccess)
	}
	return perms
}

// HasPermission reports whether the user's effective permissions grant p.
// admin.access subsumes every permission.
func (u *User) HasPermission(p Permission) bool {
	return u.EffectivePermissions().Allows(p)
}

// HasAnyPermission reports whether any of the given permissions is granted.
func (u *User) HasAnyPermission(perms ...Permission) bool {
	return u.EffectivePermissions().AllowsAny(perms)
}

// DisplayName is the user's full name, used by admin reporting.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lowercases and trims an email address for uniqueness
// comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUserRequest is the DTO for admin user creation.
type CreateUserRequest struct {
	Email     string      `json:"email" validate:"required,email,max=255"`
	Password  string      `json:"password" validate:"required,min=6,max=72"`
	FirstName string      `json:"firstName" validate:"required,min=1,max=50"`
	LastName  string      `json:"lastName" validate:"required,min=1,max=50"`
	Roles     []string    `json:"roles,omitempty"`
	Teams     []uuid.UUID `json:"teams,omitempty"`
}

// Validate sanitizes and validates the request.
func (r *CreateUserRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	validate := validator.New()
	return validate.Struct(r)
}

// UpdateUserRequest is the DTO for partial admin user updates. Nil = don't
// modify.
type UpdateUserRequest struct {
	Email     *string      `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Password  *string      `json:"password,omitempty" validate:"omitempty,min=6,max=72"`
	FirstName *string      `json:"firstName,omitempty" validate:"omitempty,min=1,max=50"`
	LastName  *string      `json:"lastName,omitempty" validate:"omitempty,min=1,max=50"`
	Roles     *[]string    `json:"roles,omitempty"`
	Teams     *[]uuid.UUID `json:"teams,omitempty"`
}

// Validate sanitizes and validates the request.
func (r *UpdateUserRequest) Validate() error {
	if r.Email != nil {
		normalized := NormalizeEmail(*r.Email)
		r.Email = &normalized
	}
	if r.FirstName != nil {
		trimmed := strings.TrimSpace(*r.FirstName)
		r.FirstName = &trimmed
	}
	if r.LastName != nil {
		trimmed := strings.TrimSpace(*r.LastName)
		r.LastName = &trimmed
	}

	validate := validator.New()
	return validate.Struct(r)
}

// LoginRequest is the DTO for credential authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate sanitizes and validates the request.
func (r *LoginRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	validate := validator.New()
	return validate.Struct(r)
}

// UserRef is the trimmed user projection embedded in task responses and
// admin reporting (display fields only).
type UserRef struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
}
