package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/service"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeJSON parses a request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httperr.BadRequest400(w, r.Context(), httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return false
	}
	return true
}

// pathID parses a UUID path parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httperr.BadRequest400(w, r.Context(), httperr.ErrCodeInvalidParameter, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps service-layer errors onto the response envelope.
// Validation and invariant errors carry their detail; everything unexpected
// collapses to an opaque 500.
func handleServiceError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error) {
	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		httperr.BadRequest400WithFields(w, ctx, httperr.ErrCodeValidationError, "validation failed",
			map[string]string{fieldErr.Field: fieldErr.Message})
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, ve := range validationErrs {
			fields[ve.Field()] = "failed " + ve.Tag() + " validation"
		}
		httperr.BadRequest400WithFields(w, ctx, httperr.ErrCodeValidationError, "validation failed", fields)
		return
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		httperr.NotFound404(w, ctx, "task not found")
	case errors.Is(err, service.ErrUserNotFound):
		httperr.NotFound404(w, ctx, "user not found")
	case errors.Is(err, service.ErrTeamNotFound):
		httperr.NotFound404(w, ctx, "team not found")
	case errors.Is(err, service.ErrNotAssignee):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, err.Error())
	case errors.Is(err, service.ErrUnknownAssignee):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeUnknownAssignee, err.Error())
	case errors.Is(err, service.ErrEmailConflict):
		httperr.Conflict409(w, ctx, httperr.ErrCodeConflict, "user with this email already exists")
	case errors.Is(err, service.ErrTeamNameConflict):
		httperr.Conflict409(w, ctx, httperr.ErrCodeConflict, "team with this name already exists")
	case errors.Is(err, service.ErrLastAdmin):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeAccountDemoted, "the system must retain at least one admin")
	case errors.Is(err, service.ErrSystemTeam):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeSystemTeam, "system teams cannot be renamed or deleted")
	case errors.Is(err, service.ErrTeamHasMembers):
		httperr.Conflict409(w, ctx, httperr.ErrCodeTeamInUse, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrAccountLocked):
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeAccountLocked, "account temporarily locked, try again later")
	default:
		log.Error(ctx, "unhandled service error", zap.Error(err))
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}
