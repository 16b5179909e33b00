package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
)

// fakeResolver resolves every unresolved ref to a fixed team, or fails.
type fakeResolver struct {
	team  *domain.Team
	err   error
	calls int
}

func (f *fakeResolver) ResolveTeams(_ context.Context, user *domain.User) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for i, ref := range user.Teams {
		if !ref.Resolved() && f.team != nil {
			t := *f.team
			t.ID = ref.ID()
			user.Teams[i] = domain.ResolvedTeam(t)
		}
	}
	return nil
}

func TestCheckRole(t *testing.T) {
	t.Run("no roles", func(t *testing.T) {
		gateErr := CheckRole(&domain.User{}, domain.RoleAdmin)
		require.NotNil(t, gateErr)
		assert.Equal(t, GateNoRoles, gateErr.Kind)
	})

	t.Run("missing role", func(t *testing.T) {
		user := &domain.User{Roles: []domain.Role{domain.RoleMember}}
		gateErr := CheckRole(user, domain.RoleAdmin, domain.RoleManager)
		require.NotNil(t, gateErr)
		assert.Equal(t, GateMissingRole, gateErr.Kind)
	})

	t.Run("role present", func(t *testing.T) {
		user := &domain.User{Roles: []domain.Role{domain.RoleManager, domain.RoleMember}}
		assert.Nil(t, CheckRole(user, domain.RoleAdmin, domain.RoleManager))
	})
}

func TestCheckPermission(t *testing.T) {
	t.Run("resolved teams skip the store", func(t *testing.T) {
		resolver := &fakeResolver{}
		user := &domain.User{
			Roles: []domain.Role{domain.RoleMember},
			Teams: []domain.TeamRef{domain.ResolvedTeam(domain.Team{
				ID:          uuid.New(),
				Permissions: []domain.Permission{domain.PermTasksRead},
				IsActive:    true,
			})},
		}

		gateErr, err := CheckPermission(context.Background(), user, domain.PermTasksRead, resolver)
		require.NoError(t, err)
		assert.Nil(t, gateErr)
		assert.Zero(t, resolver.calls, "no store round-trip for resolved refs")
	})

	t.Run("unresolved refs are resolved lazily", func(t *testing.T) {
		resolver := &fakeResolver{team: &domain.Team{
			Permissions: []domain.Permission{domain.PermTasksCreate},
			IsActive:    true,
		}}
		user := &domain.User{
			Roles: []domain.Role{domain.RoleMember},
			Teams: []domain.TeamRef{domain.UnresolvedTeam(uuid.New())},
		}

		gateErr, err := CheckPermission(context.Background(), user, domain.PermTasksCreate, resolver)
		require.NoError(t, err)
		assert.Nil(t, gateErr)
		assert.Equal(t, 1, resolver.calls)
	})

	t.Run("denial names the permission", func(t *testing.T) {
		user := &domain.User{Roles: []domain.Role{domain.RoleMember}}

		gateErr, err := CheckPermission(context.Background(), user, domain.PermTasksDelete, &fakeResolver{})
		require.NoError(t, err)
		require.NotNil(t, gateErr)
		assert.Equal(t, GateMissingPermission, gateErr.Kind)
		assert.Contains(t, gateErr.Error(), "tasks.delete")
	})

	t.Run("store failure is an error, not a denial", func(t *testing.T) {
		resolver := &fakeResolver{err: errors.New("connection refused")}
		user := &domain.User{
			Roles: []domain.Role{domain.RoleMember},
			Teams: []domain.TeamRef{domain.UnresolvedTeam(uuid.New())},
		}

		gateErr, err := CheckPermission(context.Background(), user, domain.PermTasksRead, resolver)
		assert.Error(t, err)
		assert.Nil(t, gateErr)
	})

	t.Run("admin bypasses without team resolution", func(t *testing.T) {
		resolver := &fakeResolver{}
		user := &domain.User{Roles: []domain.Role{domain.RoleAdmin}}

		gateErr, err := CheckPermission(context.Background(), user, domain.PermTeamsDelete, resolver)
		require.NoError(t, err)
		assert.Nil(t, gateErr)
	})
}

func gateRequest(t *testing.T, mw func(http.Handler) http.Handler, user *domain.User) *httptest.ResponseRecorder {
	t.Helper()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if user != nil {
		req = req.WithContext(SetUser(req.Context(), user))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httperr.ErrorResponse {
	t.Helper()
	var resp httperr.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestRequireRoleMiddleware(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		rr := gateRequest(t, RequireRole(domain.RoleAdmin), nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("no roles", func(t *testing.T) {
		rr := gateRequest(t, RequireRole(domain.RoleAdmin), &domain.User{})
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, httperr.ErrCodeNoRoles, decodeError(t, rr).Error.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		user := &domain.User{Roles: []domain.Role{domain.RoleMember}}
		rr := gateRequest(t, RequireRole(domain.RoleAdmin), user)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, httperr.ErrCodeMissingRole, decodeError(t, rr).Error.Code)
	})

	t.Run("allowed", func(t *testing.T) {
		user := &domain.User{Roles: []domain.Role{domain.RoleAdmin}}
		rr := gateRequest(t, RequireRole(domain.RoleAdmin), user)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestRequirePermissionMiddleware(t *testing.T) {
	t.Run("denied with permission named", func(t *testing.T) {
		user := &domain.User{Roles: []domain.Role{domain.RoleMember}}
		rr := gateRequest(t, RequirePermission(domain.PermUsersDelete, &fakeResolver{}), user)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		resp := decodeError(t, rr)
		assert.Equal(t, httperr.ErrCodeMissingPerm, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "users.delete")
	})

	t.Run("store failure maps to 500", func(t *testing.T) {
		user := &domain.User{
			Roles: []domain.Role{domain.RoleMember},
			Teams: []domain.TeamRef{domain.UnresolvedTeam(uuid.New())},
		}
		resolver := &fakeResolver{err: errors.New("connection refused")}
		rr := gateRequest(t, RequirePermission(domain.PermTasksRead, resolver), user)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("granted", func(t *testing.T) {
		user := &domain.User{
			Roles:             []domain.Role{domain.RoleMember},
			CustomPermissions: []domain.Permission{domain.PermTasksRead},
		}
		rr := gateRequest(t, RequirePermission(domain.PermTasksRead, &fakeResolver{}), user)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
