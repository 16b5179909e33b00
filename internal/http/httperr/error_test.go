package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskdeck-api/internal/observability/logger"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	log, err := logger.New("test", "info")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger.SetLoggerInContext(context.Background(), log)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestWriteError(t *testing.T) {
	ctx := testContext(t)

	tests := []struct {
		name    string
		status  int
		code    string
		message string
	}{
		{"401 Unauthorized", http.StatusUnauthorized, ErrCodeInvalidToken, "invalid token provided"},
		{"403 Forbidden", http.StatusForbidden, ErrCodeMissingPerm, "missing permission: tasks.delete"},
		{"400 Bad Request", http.StatusBadRequest, ErrCodeInvalidParameter, "invalid task id"},
		{"404 Not Found", http.StatusNotFound, ErrCodeNotFound, "task not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, ctx, tt.status, tt.code, tt.message)

			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}

			response := decodeEnvelope(t, rr)
			if response.OK {
				t.Error("expected ok=false")
			}
			if response.Error == nil {
				t.Fatal("expected error detail, got nil")
			}
			if response.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, response.Error.Code)
			}
			if response.Error.Message != tt.message {
				t.Errorf("expected message %s, got %s", tt.message, response.Error.Message)
			}
			if got := rr.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", got)
			}
		})
	}
}

func TestWriteErrorWithFields(t *testing.T) {
	ctx := testContext(t)

	rr := httptest.NewRecorder()
	fields := map[string]string{
		"title":   "title is required",
		"dueDate": "due date must be in the future",
	}

	WriteErrorWithFields(rr, ctx, http.StatusBadRequest, ErrCodeValidationError, "validation failed", fields)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	response := decodeEnvelope(t, rr)
	if response.Error == nil {
		t.Fatal("expected error detail, got nil")
	}
	if len(response.Error.Fields) != 2 {
		t.Errorf("expected 2 fields, got %d", len(response.Error.Fields))
	}
	if response.Error.Fields["dueDate"] != "due date must be in the future" {
		t.Errorf("unexpected dueDate field value: %s", response.Error.Fields["dueDate"])
	}
}

func TestStatusHelpers(t *testing.T) {
	ctx := testContext(t)

	tests := []struct {
		name   string
		write  func(*httptest.ResponseRecorder)
		status int
		code   string
	}{
		{
			"Unauthorized401",
			func(rr *httptest.ResponseRecorder) { Unauthorized401(rr, ctx, ErrCodeTokenExpired, "token expired") },
			http.StatusUnauthorized,
			ErrCodeTokenExpired,
		},
		{
			"Forbidden403",
			func(rr *httptest.ResponseRecorder) { Forbidden403(rr, ctx, ErrCodeNoRoles, "no assigned roles") },
			http.StatusForbidden,
			ErrCodeNoRoles,
		},
		{
			"BadRequest400",
			func(rr *httptest.ResponseRecorder) {
				BadRequest400(rr, ctx, ErrCodeInvalidFormat, "body is not valid json")
			},
			http.StatusBadRequest,
			ErrCodeInvalidFormat,
		},
		{
			"NotFound404",
			func(rr *httptest.ResponseRecorder) { NotFound404(rr, ctx, "team not found") },
			http.StatusNotFound,
			ErrCodeNotFound,
		},
		{
			"Conflict409",
			func(rr *httptest.ResponseRecorder) { Conflict409(rr, ctx, ErrCodeConflict, "email already in use") },
			http.StatusConflict,
			ErrCodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.write(rr)

			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
			response := decodeEnvelope(t, rr)
			if response.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, response.Error.Code)
			}
		})
	}
}

func TestInternalError500HidesCause(t *testing.T) {
	ctx := testContext(t)

	rr := httptest.NewRecorder()
	InternalError500(rr, ctx, "database connection failed")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}

	response := decodeEnvelope(t, rr)
	if response.Error.Code != ErrCodeInternalError {
		t.Errorf("expected code %s, got %s", ErrCodeInternalError, response.Error.Code)
	}
	if response.Error.Message != "Internal Server Error" {
		t.Errorf("internal cause leaked to the client: %s", response.Error.Message)
	}
}
