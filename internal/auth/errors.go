package auth

import (
	"errors"

	"taskdeck-api/internal/domain"
)

// AuthFailureReason categorizes authentication failures.
type AuthFailureReason string

const (
	AuthFailureMissingAuthorization AuthFailureReason = "missing_authorization"
	AuthFailureInvalidScheme        AuthFailureReason = "invalid_scheme"
	AuthFailureInvalidSignature     AuthFailureReason = "invalid_signature"
	AuthFailureInvalidIssuer        AuthFailureReason = "invalid_issuer"
	AuthFailureInvalidAudience      AuthFailureReason = "invalid_audience"
	AuthFailureTokenExpired         AuthFailureReason = "token_expired"
	AuthFailureUserNotFound         AuthFailureReason = "user_not_found"
	AuthFailureUnknown              AuthFailureReason = "unknown"
)

// AuthError is a categorized authentication (401) error.
type AuthError struct {
	Reason  AuthFailureReason
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a categorized AuthError.
func NewAuthError(reason AuthFailureReason, message string, err error) *AuthError {
	return &AuthError{Reason: reason, Message: message, Err: err}
}

// IsAuthError checks whether err is (or wraps) an AuthError.
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// GateKind categorizes authorization (403) denials.
type GateKind string

const (
	GateNoRoles           GateKind = "no_roles"
	GateMissingRole       GateKind = "missing_role"
	GateMissingPermission GateKind = "missing_permission"
)

// GateError is an ordinary denial value, not an exceptional condition: gates
// return it so callers can translate without panics or sentinel strings.
type GateError struct {
	Kind GateKind

	// Permission is set for GateMissingPermission denials so the response
	// can name the missing permission.
	Permission domain.Permission
}

func (e *GateError) Error() string {
	switch e.Kind {
	case GateNoRoles:
		return "access denied: no assigned roles"
	case GateMissingRole:
		return "access denied: insufficient permissions"
	case GateMissingPermission:
		return "access denied: missing permission " + string(e.Permission)
	default:
		return "access denied"
	}
}

// IsGateError checks whether err is (or wraps) a GateError.
func IsGateError(err error) (*GateError, bool) {
	var gateErr *GateError
	if errors.As(err, &gateErr) {
		return gateErr, true
	}
	return nil, false
}

// maskToken shortens a token for safe logging.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:12] + "..."
}
