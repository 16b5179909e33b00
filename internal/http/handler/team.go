package handler

import (
	"net/http"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/service"
)

type TeamHandler struct {
	service *service.TeamService
}

func NewTeamHandler(service *service.TeamService) *TeamHandler {
	return &TeamHandler{service: service}
}

// ListTeams handles GET /v1/teams
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	teams, err := h.service.List(ctx)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// GetTeam handles GET /v1/teams/{teamId}
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	teamID, ok := pathID(w, r, "teamId")
	if !ok {
		return
	}

	team, err := h.service.Get(ctx, teamID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// CreateTeam handles POST /v1/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := auth.GetUser(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	var req domain.CreateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	team, err := h.service.Create(ctx, actor, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// UpdateTeam handles PUT /v1/teams/{teamId}
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	teamID, ok := pathID(w, r, "teamId")
	if !ok {
		return
	}

	var req domain.UpdateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	team, err := h.service.Update(ctx, teamID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// DeleteTeam handles DELETE /v1/teams/{teamId}
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	teamID, ok := pathID(w, r, "teamId")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, teamID); err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// AvailablePermissions handles GET /v1/teams/permissions/available
func (h *TeamHandler) AvailablePermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"permissions": h.service.AvailablePermissions(),
	})
}
