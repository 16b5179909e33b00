package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/observability/requestid"

	"go.uber.org/zap"
)

// ErrorResponse is the error envelope every failing endpoint returns.
type ErrorResponse struct {
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	ErrorID string            `json:"error_id,omitempty"`
}

// 401 Unauthorized: authentication failures.
const (
	ErrCodeMissingAuthorization = "MISSING_AUTHORIZATION"
	ErrCodeInvalidScheme        = "INVALID_SCHEME"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeInvalidIssuer        = "INVALID_ISSUER"
	ErrCodeInvalidAudience      = "INVALID_AUDIENCE"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeAccountLocked        = "ACCOUNT_LOCKED"
)

// 403 Forbidden: authenticated but not allowed.
const (
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNoRoles        = "NO_ROLES"
	ErrCodeMissingRole    = "MISSING_ROLE"
	ErrCodeMissingPerm    = "MISSING_PERMISSION"
	ErrCodeAccountDemoted = "LAST_ADMIN"
)

// 400 Bad Request / 404 / 409.
const (
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeInvalidPriority  = "INVALID_PRIORITY"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTeamInUse        = "TEAM_IN_USE"
	ErrCodeSystemTeam       = "SYSTEM_TEAM"
	ErrCodeUnknownAssignee  = "UNKNOWN_ASSIGNEE"
)

// 429 / 500.
const (
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// WriteError writes the standard error envelope and logs the failure.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	log := logger.GetLogger(ctx)
	log.Error(ctx, "request failed",
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)

	writeEnvelope(w, status, &ErrorDetail{Code: code, Message: message})
}

// WriteErrorWithFields writes the error envelope with field-level details.
func WriteErrorWithFields(w http.ResponseWriter, ctx context.Context, status int, code, message string, fields map[string]string) {
	log := logger.GetLogger(ctx)

	logFields := make([]zap.Field, 0, len(fields)+3)
	logFields = append(logFields,
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)
	for k, v := range fields {
		logFields = append(logFields, zap.String("field_"+k, v))
	}
	log.Error(ctx, "request failed with field errors", logFields...)

	writeEnvelope(w, status, &ErrorDetail{Code: code, Message: message, Fields: fields})
}

func BadRequest400(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusBadRequest, code, message)
}

func BadRequest400WithFields(w http.ResponseWriter, ctx context.Context, code, message string, fields map[string]string) {
	WriteErrorWithFields(w, ctx, http.StatusBadRequest, code, message, fields)
}

func Unauthorized401(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusUnauthorized, code, message)
}

func Forbidden403(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusForbidden, code, message)
}

func NotFound404(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, message)
}

func Conflict409(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusConflict, code, message)
}

// InternalError500 writes a generic 500. The concrete cause stays in the
// logs; the response only carries the request ID in dev.
func InternalError500(w http.ResponseWriter, ctx context.Context, message string) {
	log := logger.GetLogger(ctx)
	log.Error(ctx, "internal server error", zap.String("message", message))

	detail := &ErrorDetail{
		Code:    ErrCodeInternalError,
		Message: "Internal Server Error",
	}
	if os.Getenv("APP_ENV") == "dev" {
		detail.ErrorID = requestid.GetRequestID(ctx)
	}

	writeEnvelope(w, http.StatusInternalServerError, detail)
}

// InternalError writes a generic 500 with the default message.
func InternalError(w http.ResponseWriter, ctx context.Context) {
	InternalError500(w, ctx, "internal server error")
}

func writeEnvelope(w http.ResponseWriter, status int, detail *ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{OK: false, Error: detail})
}
