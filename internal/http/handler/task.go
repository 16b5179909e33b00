package handler

import (
	"net/http"
	"strconv"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/service"
)

type TaskHandler struct {
	service *service.TaskService
}

func NewTaskHandler(service *service.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// ListTasks handles GET /v1/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := auth.GetUser(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	params := domain.ListTasksParams{}
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
	params.SortBy = query.Get("sortBy")
	params.SortOrder = query.Get("sortOrder")

	response, err := h.service.List(ctx, actor, params)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// GetTask handles GET /v1/tasks/{taskId}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
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

	task, err := h.service.Get(ctx, actor, taskID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CreateTask handles POST /v1/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := auth.GetUser(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	var req domain.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.Create(ctx, actor, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask handles PUT /v1/tasks/{taskId}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
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

	task, err := h.service.Update(ctx, actor, taskID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ArchiveTask handles DELETE /v1/tasks/{taskId}. Delete requests archive,
// they never remove.
func (h *TaskHandler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
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

	task, err := h.service.Archive(ctx, actor, taskID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// RestoreTask handles POST /v1/tasks/{taskId}/restore
func (h *TaskHandler) RestoreTask(w http.ResponseWriter, r *http.Request) {
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

	task, err := h.service.Restore(ctx, actor, taskID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetHistory handles GET /v1/tasks/{taskId}/history
func (h *TaskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.service.History(ctx, actor, taskID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// ReassignTask handles PATCH /v1/tasks/{taskId}/assign
func (h *TaskHandler) ReassignTask(w http.ResponseWriter, r *http.Request) {
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

	var req domain.ReassignTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.Reassign(ctx, actor, taskID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
