package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskdeck-api/internal/domain"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team with this name already exists")
)

type TeamRepository struct {
	pool *pgxpool.Pool
}

func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

const teamColumns = `id, name, description, color, icon, permissions,
       is_system, is_active, created_by, created_at, updated_at`

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var t domain.Team
	var perms []string
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Color, &t.Icon, &perms,
		&t.IsSystem, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Permissions = domain.NormalizePermissions(perms)
	return &t, nil
}

// Create inserts a new team.
func (r *TeamRepository) Create(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (id, name, description, color, icon, permissions, is_system, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		team.ID, team.Name, team.Description, team.Color, team.Icon,
		permissionsToStrings(team.Permissions), team.IsSystem, team.IsActive, team.CreatedBy,
	).Scan(&team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

// FindByID loads a single team.
func (r *TeamRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	team, err := scanTeam(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("query team: %w", err)
	}
	return team, nil
}

// List returns all teams with their member counts, system teams first.
func (r *TeamRepository) List(ctx context.Context) ([]domain.Team, error) {
	query := `
		SELECT ` + teamColumns + `,
		       (SELECT COUNT(*) FROM user_teams ut WHERE ut.team_id = teams.id) AS member_count
		FROM teams
		ORDER BY is_system DESC, name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	teams := []domain.Team{}
	for rows.Next() {
		var t domain.Team
		var perms []string
		var memberCount int
		err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Color, &t.Icon, &perms,
			&t.IsSystem, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
			&memberCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.Permissions = domain.NormalizePermissions(perms)
		t.MemberCount = &memberCount
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// FindByIDs loads teams by id, active or not. Unknown ids are silently
// absent from the result.
func (r *TeamRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query teams by ids: %w", err)
	}
	defer rows.Close()

	teams := []domain.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

// Save persists the mutable fields of an already-loaded team.
func (r *TeamRepository) Save(ctx context.Context, team *domain.Team) error {
	query := `
		UPDATE teams
		SET name = $2, description = $3, color = $4, icon = $5,
		    permissions = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		team.ID, team.Name, team.Description, team.Color, team.Icon,
		permissionsToStrings(team.Permissions), team.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("update team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// SoftDelete deactivates a team. Teams are never physically removed through
// the API; memberships are kept so reactivation restores grants. The service
// layer enforces the system-team and member guards before calling this.
func (r *TeamRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE teams SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// MemberCount returns the number of users belonging to a team.
func (r *TeamRepository) MemberCount(ctx context.Context, teamID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_teams WHERE team_id = $1`, teamID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// UpsertSystem inserts a system team or refreshes its permission bundle.
// Used by seeding so repeated runs converge on the same state.
func (r *TeamRepository) UpsertSystem(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (id, name, description, color, icon, permissions, is_system, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, TRUE)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
		    color = EXCLUDED.color,
		    icon = EXCLUDED.icon,
		    permissions = EXCLUDED.permissions,
		    is_system = TRUE,
		    updated_at = NOW()
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		team.ID, team.Name, team.Description, team.Color, team.Icon,
		permissionsToStrings(team.Permissions),
	).Scan(&team.ID)
	if err != nil {
		return fmt.Errorf("upsert system team: %w", err)
	}
	return nil
}
