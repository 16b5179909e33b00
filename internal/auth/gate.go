package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
)

// TeamResolver fills in a user's unresolved team refs from the store.
type TeamResolver interface {
	ResolveTeams(ctx context.Context, user *domain.User) error
}

// CheckRole is the role gate as a plain value function: it returns a
// GateError describing the denial, or nil when the user passes. A user with
// an empty role list is denied with a distinct kind so the response can
// distinguish "no roles at all" from "wrong roles".
func CheckRole(user *domain.User, allowed ...domain.Role) *GateError {
	if len(user.Roles) == 0 {
		return &GateError{Kind: GateNoRoles}
	}
	for _, role := range allowed {
		if domain.ContainsRole(user.Roles, role) {
			return nil
		}
	}
	return &GateError{Kind: GateMissingRole}
}

// CheckPermission is the permission gate. Team refs are resolved lazily:
// the store is only consulted when at least one ref is unresolved. A store
// failure is returned as-is and must surface as a 500, never as a denial.
func CheckPermission(ctx context.Context, user *domain.User, perm domain.Permission, teams TeamResolver) (*GateError, error) {
	if domain.AnyUnresolved(user.Teams) {
		if err := teams.ResolveTeams(ctx, user); err != nil {
			return nil, err
		}
	}
	if user.HasPermission(perm) {
		return nil, nil
	}
	return &GateError{Kind: GateMissingPermission, Permission: perm}, nil
}

// RequireRole gates a route on role membership. It assumes Authenticate ran
// earlier in the chain.
func RequireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, ok := GetUser(ctx)
			if !ok {
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingAuthorization, "authentication required")
				return
			}

			if gateErr := CheckRole(user, allowed...); gateErr != nil {
				writeGateError(w, ctx, gateErr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a route on a single permission.
func RequirePermission(perm domain.Permission, teams TeamResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			user, ok := GetUser(ctx)
			if !ok {
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingAuthorization, "authentication required")
				return
			}

			gateErr, err := CheckPermission(ctx, user, perm, teams)
			if err != nil {
				log.Error(ctx, "permission check failed",
					logger.Module("auth"),
					logger.Action("check_permission"),
					zap.String("permission", string(perm)),
					zap.Error(err),
				)
				httperr.InternalError(w, ctx)
				return
			}
			if gateErr != nil {
				writeGateError(w, ctx, gateErr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeGateError(w http.ResponseWriter, ctx context.Context, gateErr *GateError) {
	switch gateErr.Kind {
	case GateNoRoles:
		httperr.Forbidden403(w, ctx, httperr.ErrCodeNoRoles, "access denied: no assigned roles")
	case GateMissingRole:
		httperr.Forbidden403(w, ctx, httperr.ErrCodeMissingRole, "access denied: insufficient permissions")
	case GateMissingPermission:
		httperr.Forbidden403(w, ctx, httperr.ErrCodeMissingPerm, gateErr.Error())
	default:
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "access denied")
	}
}
