package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/service"
)

type AdminHandler struct {
	users *service.UserService
	admin *service.AdminService
}

func NewAdminHandler(users *service.UserService, admin *service.AdminService) *AdminHandler {
	return &AdminHandler{users: users, admin: admin}
}

// ListUsers handles GET /v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	users, err := h.users.List(ctx)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser handles GET /v1/admin/users/{userId}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	user, err := h.users.Get(ctx, userID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /v1/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req domain.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Create(ctx, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// UpdateUser handles PUT /v1/admin/users/{userId}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req domain.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Update(ctx, userID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /v1/admin/users/{userId}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	if err := h.users.Delete(ctx, userID); err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// UpdateUserRoles handles PATCH /v1/admin/users/{userId}/roles
func (h *AdminHandler) UpdateUserRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req struct {
		Roles []string `json:"roles"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdateRoles(ctx, userID, req.Roles)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserTeams handles PATCH /v1/admin/users/{userId}/teams
func (h *AdminHandler) UpdateUserTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req struct {
		Teams []uuid.UUID `json:"teams"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdateTeams(ctx, userID, req.Teams)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserPermissions handles PATCH /v1/admin/users/{userId}/permissions
func (h *AdminHandler) UpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req struct {
		Permissions []string `json:"permissions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdatePermissions(ctx, userID, req.Permissions)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListTasks handles GET /v1/admin/tasks
func (h *AdminHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	params := domain.AdminListTasksParams{}
	query := r.URL.Query()

	if pageStr := query.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "page must be a positive integer")
			return
		}
		params.Page = page
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}
	if statusStr := query.Get("status"); statusStr != "" {
		status := domain.TaskStatus(statusStr)
		if !status.IsValid() {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidStatus, "status must be one of: pending, in-progress, completed, cancelled")
			return
		}
		params.Status = &status
	}
	if priorityStr := query.Get("priority"); priorityStr != "" {
		priority := domain.TaskPriority(priorityStr)
		if !priority.IsValid() {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidPriority, "priority must be one of: low, medium, high, urgent")
			return
		}
		params.Priority = &priority
	}
	if userStr := query.Get("userId"); userStr != "" {
		userID, err := uuid.Parse(userStr)
		if err != nil {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "userId must be a valid UUID")
			return
		}
		params.UserID = &userID
	}
	if search := query.Get("search"); search != "" {
		params.Search = &search
	}
	params.SortBy = query.Get("sortBy")
	params.SortOrder = query.Get("sortOrder")

	response, err := h.admin.ListTasks(ctx, params)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// TaskStats handles GET /v1/admin/tasks/stats
func (h *AdminHandler) TaskStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	stats, err := h.admin.Stats(ctx)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// UpdateTask handles PATCH /v1/admin/tasks/{taskId}
func (h *AdminHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := auth.GetUser(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}
	taskID, ok := pathID(w, r, "taskId")
	if !ok {
		return
	}

	var req domain.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.admin.UpdateTask(ctx, actor, taskID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// AssignTask handles PATCH /v1/admin/tasks/{taskId}/assign
func (h *AdminHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := auth.GetUser(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}
	taskID, ok := pathID(w, r, "taskId")
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"userId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, "userId is required")
		return
	}

	task, err := h.admin.Assign(ctx, actor, taskID, req.UserID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
