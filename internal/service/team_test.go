package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck-api/internal/domain"
)

func newTeamService(t *testing.T) (*TeamService, *fakeTeamStore) {
	t.Helper()
	store := newFakeTeamStore()
	return NewTeamService(store, testLogger(t)), store
}

func TestTeamServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTeamService(t)
	actor := &domain.User{ID: uuid.New(), Roles: []domain.Role{domain.RoleAdmin}}

	t.Run("applies defaults and drops unknown permissions", func(t *testing.T) {
		team, err := svc.Create(ctx, actor, &domain.CreateTeamRequest{
			Name:        "  Platform  ",
			Permissions: []string{"tasks.read", "bogus.permission", "tasks.read"},
		})
		require.NoError(t, err)

		assert.Equal(t, "Platform", team.Name)
		assert.Equal(t, domain.DefaultTeamColor, team.Color)
		assert.Equal(t, domain.DefaultTeamIcon, team.Icon)
		assert.Equal(t, []domain.Permission{domain.PermTasksRead}, team.Permissions)
		assert.True(t, team.IsActive)
		assert.False(t, team.IsSystem)
		require.NotNil(t, team.CreatedBy)
		assert.Equal(t, actor.ID, *team.CreatedBy)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := svc.Create(ctx, actor, &domain.CreateTeamRequest{Name: "Platform"})
		assert.ErrorIs(t, err, ErrTeamNameConflict)
	})

	t.Run("invalid color rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, actor, &domain.CreateTeamRequest{Name: "Design", Color: "blue"})
		var fieldErr *domain.FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "color", fieldErr.Field)
	})
}

func TestTeamServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("system team name is immutable", func(t *testing.T) {
		svc, store := newTeamService(t)
		team := domain.Team{ID: uuid.New(), Name: domain.SystemTeamManager, IsSystem: true, IsActive: true}
		store.add(team)

		name := "Bosses"
		_, err := svc.Update(ctx, team.ID, &domain.UpdateTeamRequest{Name: &name})
		assert.ErrorIs(t, err, ErrSystemTeam)
	})

	t.Run("system team permissions stay editable", func(t *testing.T) {
		svc, store := newTeamService(t)
		team := domain.Team{ID: uuid.New(), Name: domain.SystemTeamMember, IsSystem: true, IsActive: true}
		store.add(team)

		perms := []string{"tasks.read", "tasks.create"}
		updated, err := svc.Update(ctx, team.ID, &domain.UpdateTeamRequest{Permissions: &perms})
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]domain.Permission{domain.PermTasksRead, domain.PermTasksCreate},
			updated.Permissions,
		)
	})

	t.Run("same name on a system team is not a rename", func(t *testing.T) {
		svc, store := newTeamService(t)
		team := domain.Team{ID: uuid.New(), Name: domain.SystemTeamMember, IsSystem: true, IsActive: true}
		store.add(team)

		name := domain.SystemTeamMember
		desc := "Everyone"
		_, err := svc.Update(ctx, team.ID, &domain.UpdateTeamRequest{Name: &name, Description: &desc})
		assert.NoError(t, err)
	})

	t.Run("unknown team", func(t *testing.T) {
		svc, _ := newTeamService(t)
		desc := "x"
		_, err := svc.Update(ctx, uuid.New(), &domain.UpdateTeamRequest{Description: &desc})
		assert.ErrorIs(t, err, ErrTeamNotFound)
	})
}

func TestTeamServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("soft-deletes an empty team", func(t *testing.T) {
		svc, store := newTeamService(t)
		team := domain.Team{ID: uuid.New(), Name: "Legacy", IsActive: true}
		store.add(team)

		require.NoError(t, svc.Delete(ctx, team.ID))

		stored, err := store.FindByID(ctx, team.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive, "delete must deactivate, never remove")
	})

	t.Run("system team is never deletable", func(t *testing.T) {
		svc, store := newTeamService(t)
		team := domain.Team{ID: uuid.New(), Name: domain.SystemTeamAdministrator, IsSystem: true, IsActive: true}
		store.add(team)

		assert.ErrorIs(t, svc.Delete(ctx, team.ID), ErrSystemTeam)
	})

	t.Run("team with members stays active", func(t *testing.T) {
		svc, store := newTeamService(t)
		team := domain.Team{ID: uuid.New(), Name: "QA", IsActive: true}
		store.add(team)
		store.members[team.ID] = 3

		assert.ErrorIs(t, svc.Delete(ctx, team.ID), ErrTeamHasMembers)

		stored, err := store.FindByID(ctx, team.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
	})
}

func TestTeamServiceSeedSystemTeams(t *testing.T) {
	ctx := context.Background()
	svc, store := newTeamService(t)

	require.NoError(t, svc.SeedSystemTeams(ctx))

	teams, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 3)

	byName := map[string]domain.Team{}
	for _, team := range teams {
		byName[team.Name] = team
		assert.True(t, team.IsSystem)
		assert.True(t, team.IsActive)
	}
	assert.Equal(t,
		[]domain.Permission{domain.PermAdminAccess},
		byName[domain.SystemTeamAdministrator].Permissions,
	)
	assert.Contains(t, byName[domain.SystemTeamManager].Permissions, domain.PermTasksDelete)
	assert.NotContains(t, byName[domain.SystemTeamMember].Permissions, domain.PermTasksDelete)

	// Running the seed again must converge, not duplicate.
	require.NoError(t, svc.SeedSystemTeams(ctx))
	teams, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 3)
}

func TestTeamServiceAvailablePermissions(t *testing.T) {
	svc, _ := newTeamService(t)
	perms := svc.AvailablePermissions()
	assert.Equal(t, domain.Catalog(), perms)
	assert.Contains(t, perms, domain.PermAdminAccess)
}
