package handler

import (
	"net/http"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/service"
)

type AuthHandler struct {
	users    *service.UserService
	resolver *service.Resolver
}

func NewAuthHandler(users *service.UserService, resolver *service.Resolver) *AuthHandler {
	return &AuthHandler{users: users, resolver: resolver}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.users.Login(ctx, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Me handles GET /v1/auth/me. Returns the stored user with effective
// permissions resolved, so clients can build their UI without re-deriving
// grants.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	user, ok := auth.GetUser(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	perms, err := h.resolver.EffectivePermissions(ctx, user)
	if err != nil {
		log.Error(ctx, "failed to resolve permissions", logger.Module("auth"), logger.Action("me"))
		httperr.InternalError500(w, ctx, "an internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        user,
		"permissions": perms.Values(),
	})
}
