package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/observability/logger"
)

// systemTeams are the built-in teams seeded at bootstrap. Their names are
// immutable and they can never be hard-deleted; their permission bundles stay
// editable through the regular update path.
var systemTeams = []domain.Team{
	{
		Name:        domain.SystemTeamAdministrator,
		Description: "Full access to every resource",
		Color:       "#1d4ed8",
		Icon:        "crown",
		Permissions: []domain.Permission{domain.PermAdminAccess},
	},
	{
		Name:        domain.SystemTeamManager,
		Description: "Manage tasks and view users and teams",
		Color:       "#047857",
		Icon:        "clipboard-list",
		Permissions: []domain.Permission{
			domain.PermTasksCreate, domain.PermTasksRead, domain.PermTasksUpdate,
			domain.PermTasksDelete, domain.PermTasksAssign,
			domain.PermUsersRead, domain.PermTeamsRead, domain.PermSettingsRead,
		},
	},
	{
		Name:        domain.SystemTeamMember,
		Description: "Create and work on tasks",
		Color:       "#4338ca",
		Icon:        "users",
		Permissions: []domain.Permission{
			domain.PermTasksCreate, domain.PermTasksRead, domain.PermTasksUpdate,
		},
	},
}

type TeamService struct {
	teams TeamStore
	log   *logger.Logger
}

func NewTeamService(teams TeamStore, log *logger.Logger) *TeamService {
	return &TeamService{teams: teams, log: log}
}

// List returns every team, system teams first, with member counts.
func (s *TeamService) List(ctx context.Context) ([]domain.Team, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// Get loads a single team with its member count.
func (s *TeamService) Get(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.teams.MemberCount(ctx, id)
	if err != nil {
		return nil, err
	}
	team.MemberCount = &count
	return team, nil
}

// Create creates a non-system team. Unknown permission strings are dropped
// during normalization, not rejected.
func (s *TeamService) Create(ctx context.Context, actor *domain.User, req *domain.CreateTeamRequest) (*domain.Team, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	team := &domain.Team{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		Permissions: domain.NormalizePermissions(req.Permissions),
		IsActive:    true,
		CreatedBy:   &actor.ID,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "team created",
		logger.Module("team"),
		logger.Action("create"),
		zap.String("team_id", team.ID.String()),
		zap.String("name", team.Name),
	)
	return team, nil
}

// Update applies a partial update. System team names are immutable; every
// other field, including the permission bundle, stays editable.
func (s *TeamService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateTeamRequest) (*domain.Team, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != team.Name {
		if team.IsSystem {
			return nil, ErrSystemTeam
		}
		team.Name = *req.Name
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	if req.Color != nil {
		team.Color = *req.Color
	}
	if req.Icon != nil {
		team.Icon = *req.Icon
	}
	if req.Permissions != nil {
		team.Permissions = domain.NormalizePermissions(*req.Permissions)
	}

	if err := s.teams.Save(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// Delete soft-deletes a team. System teams are never deletable, and a team
// still referenced by members stays active until the members are moved off.
func (s *TeamService) Delete(ctx context.Context, id uuid.UUID) error {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if team.IsSystem {
		return ErrSystemTeam
	}

	count, err := s.teams.MemberCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d member(s)", ErrTeamHasMembers, count)
	}

	if err := s.teams.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.log.Info(ctx, "team deactivated",
		logger.Module("team"),
		logger.Action("delete"),
		zap.String("team_id", id.String()),
	)
	return nil
}

// AvailablePermissions exposes the fixed permission catalog, used by clients
// to build permission-selection forms.
func (s *TeamService) AvailablePermissions() []domain.Permission {
	return domain.Catalog()
}

// SeedSystemTeams upserts the built-in teams. Safe to run on every startup;
// repeated runs converge on the same state.
func (s *TeamService) SeedSystemTeams(ctx context.Context) error {
	for _, seed := range systemTeams {
		team := seed
		team.ID = uuid.New()
		if err := s.teams.UpsertSystem(ctx, &team); err != nil {
			return fmt.Errorf("seed team %q: %w", team.Name, err)
		}
		s.log.Info(ctx, "system team seeded",
			logger.Module("team"),
			logger.Action("seed"),
			zap.String("team_id", team.ID.String()),
			zap.String("name", team.Name),
		)
	}
	return nil
}
