package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Names of the three built-in system teams seeded at bootstrap. System teams
// can never be hard-deleted and their names are immutable; their permission
// sets remain editable.
const (
	SystemTeamAdministrator = "Administrator"
	SystemTeamManager       = "Manager"
	SystemTeamMember        = "Member"
)

const (
	DefaultTeamColor = "#3b82f6"
	DefaultTeamIcon  = "users"
)

var hexColorRe = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// IsValidTeamColor reports whether s is a 3- or 6-digit hex color.
func IsValidTeamColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// Team is a named, reusable bundle of permissions that users can join.
// Teams are soft-deleted (IsActive=false), never physically removed through
// the API.
type Team struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description" db:"description"`
	Color       string       `json:"color" db:"color"`
	Icon        string       `json:"icon" db:"icon"`
	Permissions []Permission `json:"permissions" db:"permissions"`
	IsSystem    bool         `json:"isSystem" db:"is_system"`
	IsActive    bool         `json:"isActive" db:"is_active"`
	CreatedBy   *uuid.UUID   `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`

	// MemberCount is populated on single-team reads; not a stored column.
	MemberCount *int `json:"memberCount,omitempty" db:"-"`
}

// HasPermission reports whether the team grants p, honoring the admin.access
// bypass.
func (t *Team) HasPermission(p Permission) bool {
	for _, have := range t.Permissions {
		if have == p || have == PermAdminAccess {
			return true
		}
	}
	return false
}

// CreateTeamRequest is the DTO for team creation. Unknown permission strings
// are dropped during normalization, not rejected.
type CreateTeamRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=50"`
	Description string   `json:"description" validate:"max=200"`
	Color       string   `json:"color,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Validate sanitizes and validates the request.
func (r *CreateTeamRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Color == "" {
		r.Color = DefaultTeamColor
	}
	if r.Icon == "" {
		r.Icon = DefaultTeamIcon
	}
	if !IsValidTeamColor(r.Color) {
		return &FieldError{Field: "color", Message: "color must be a valid hex color"}
	}

	validate := validator.New()
	return validate.Struct(r)
}

// UpdateTeamRequest is the DTO for partial team updates. Nil means "don't
// modify". System team names cannot be changed.
type UpdateTeamRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=200"`
	Color       *string   `json:"color,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
}

// Validate sanitizes and validates the request.
func (r *UpdateTeamRequest) Validate() error {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
	if r.Color != nil && !IsValidTeamColor(*r.Color) {
		return &FieldError{Field: "color", Message: "color must be a valid hex color"}
	}

	validate := validator.New()
	return validate.Struct(r)
}

// FieldError is a validation failure on a single named field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}
