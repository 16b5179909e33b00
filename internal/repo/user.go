package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskdeck-api/internal/domain"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailConflict = errors.New("user with this email already exists")
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, roles,
       custom_permissions, login_attempts, lock_until, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var roles, perms []string
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&roles, &perms, &u.LoginAttempts, &u.LockUntil,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = domain.NormalizeRoles(roles)
	u.CustomPermissions = domain.NormalizePermissions(perms)
	return &u, nil
}

// Create inserts a new user and attaches the requested team memberships in
// the same transaction.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, roles, custom_permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		rolesToStrings(user.Roles), permissionsToStrings(user.CustomPermissions),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := replaceTeamsTx(ctx, tx, user.ID, domain.TeamRefIDs(user.Teams)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindByID loads a user. Team memberships come back as unresolved refs so
// callers only pay for the teams query when a permission check needs it.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	teamIDs, err := r.teamIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Teams = refsFromIDs(teamIDs)

	return user, nil
}

// FindByEmail loads a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}

	teamIDs, err := r.teamIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Teams = refsFromIDs(teamIDs)

	return user, nil
}

// List returns all users ordered by creation time, with unresolved team refs.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	memberships, err := r.allTeamIDs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Teams = refsFromIDs(memberships[users[i].ID])
	}

	return users, nil
}

// Save persists the mutable fields of an already-loaded user.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
		    roles = $6, custom_permissions = $7, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		rolesToStrings(user.Roles), permissionsToStrings(user.CustomPermissions),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetTeams replaces a user's team memberships.
func (r *UserRepository) SetTeams(ctx context.Context, userID uuid.UUID, teamIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceTeamsTx(ctx, tx, userID, teamIDs); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordLoginState persists the lockout bookkeeping after a login attempt.
func (r *UserRepository) RecordLoginState(ctx context.Context, userID uuid.UUID, attempts int, lockUntil *time.Time) error {
	query := `UPDATE users SET login_attempts = $2, lock_until = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, userID, attempts, lockUntil)
	if err != nil {
		return fmt.Errorf("update login state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user. Team memberships go with it via cascade.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountAdminsExcept counts users holding the admin role, excluding the given
// user. Backs the last-admin guard on demotion and deletion.
func (r *UserRepository) CountAdminsExcept(ctx context.Context, excluded uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE 'admin' = ANY(roles) AND id <> $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, excluded).Scan(&count); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// ExistingIDs filters ids down to those that belong to stored users.
func (r *UserRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query existing user ids: %w", err)
	}
	defer rows.Close()

	existing := make([]uuid.UUID, 0, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// RefsByIDs returns display projections for the given users.
func (r *UserRepository) RefsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UserRef, error) {
	refs := make(map[uuid.UUID]domain.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, first_name, last_name, email FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query user refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref domain.UserRef
		if err := rows.Scan(&ref.ID, &ref.FirstName, &ref.LastName, &ref.Email); err != nil {
			return nil, fmt.Errorf("scan user ref: %w", err)
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

func (r *UserRepository) teamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT team_id FROM user_teams WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user teams: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan team id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepository) allTeamIDs(ctx context.Context) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, team_id FROM user_teams`)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	memberships := map[uuid.UUID][]uuid.UUID{}
	for rows.Next() {
		var userID, teamID uuid.UUID
		if err := rows.Scan(&userID, &teamID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships[userID] = append(memberships[userID], teamID)
	}
	return memberships, rows.Err()
}

func replaceTeamsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, teamIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_teams WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user teams: %w", err)
	}
	for _, teamID := range teamIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_teams (user_id, team_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, teamID,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrTeamNotFound
			}
			return fmt.Errorf("insert membership: %w", err)
		}
	}
	return nil
}
