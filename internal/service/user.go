package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/observability/logger"
)

const (
	maxLoginAttempts = 5
	lockDuration     = 15 * time.Minute
)

type UserService struct {
	users  UserStore
	issuer *auth.Issuer
	log    *logger.Logger
}

func NewUserService(users UserStore, issuer *auth.Issuer, log *logger.Logger) *UserService {
	return &UserService{users: users, issuer: issuer, log: log}
}

// LoginResult carries a freshly issued token and the authenticated user.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// Login authenticates credentials and issues a JWT. Failed attempts are
// counted per account; hitting the limit locks the account for a fixed
// window. The caller never learns whether the email or the password was
// wrong.
func (s *UserService) Login(ctx context.Context, req *domain.LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user.IsLocked(now) {
		s.log.Warn(ctx, "login rejected: account locked",
			logger.Module("user"),
			logger.Action("login"),
			zap.String("user_id", user.ID.String()),
		)
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		attempts := user.LoginAttempts + 1
		var lockUntil *time.Time
		if attempts >= maxLoginAttempts {
			until := now.Add(lockDuration)
			lockUntil = &until
		}
		if err := s.users.RecordLoginState(ctx, user.ID, attempts, lockUntil); err != nil {
			s.log.Error(ctx, "failed to record login attempt",
				logger.Module("user"),
				logger.Action("login"),
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
		s.log.Warn(ctx, "login rejected: bad password",
			logger.Module("user"),
			logger.Action("login"),
			zap.String("user_id", user.ID.String()),
			zap.Int("attempts", attempts),
			zap.Bool("locked", lockUntil != nil),
		)
		return nil, ErrInvalidCredentials
	}

	if user.LoginAttempts != 0 || user.LockUntil != nil {
		if err := s.users.RecordLoginState(ctx, user.ID, 0, nil); err != nil {
			s.log.Error(ctx, "failed to reset login state",
				logger.Module("user"),
				logger.Action("login"),
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
		user.LoginAttempts = 0
		user.LockUntil = nil
	}

	token, expiresAt, err := s.issuer.Issue(user, now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info(ctx, "login succeeded",
		logger.Module("user"),
		logger.Action("login"),
		zap.String("user_id", user.ID.String()),
	)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Create creates a user with a bcrypt-hashed password. The role set defaults
// to member when the request carries none; unknown role strings are dropped.
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	roles := domain.NormalizeRoles(req.Roles)
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleMember}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Roles:        roles,
		Teams:        teamRefs(req.Teams),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user created",
		logger.Module("user"),
		logger.Action("create"),
		zap.String("user_id", user.ID.String()),
	)
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get loads a single user.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// Update applies a partial update to a user's profile and, when present,
// roles and team memberships. Role changes run through the last-admin guard.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if req.Roles != nil {
		roles, err := s.guardedRoles(ctx, user, *req.Roles)
		if err != nil {
			return nil, err
		}
		user.Roles = roles
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if req.Teams != nil {
		if err := s.users.SetTeams(ctx, user.ID, *req.Teams); err != nil {
			return nil, err
		}
		user.Teams = teamRefs(*req.Teams)
	}

	return user, nil
}

// UpdateRoles replaces a user's role set, enforcing the last-admin guard.
func (s *UserService) UpdateRoles(ctx context.Context, id uuid.UUID, roles []string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	normalized, err := s.guardedRoles(ctx, user, roles)
	if err != nil {
		return nil, err
	}
	user.Roles = normalized

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user roles updated",
		logger.Module("user"),
		logger.Action("update_roles"),
		zap.String("user_id", user.ID.String()),
		zap.Strings("roles", roleStrings(user.Roles)),
	)
	return user, nil
}

// UpdateTeams replaces a user's team memberships.
func (s *UserService) UpdateTeams(ctx context.Context, id uuid.UUID, teamIDs []uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetTeams(ctx, id, teamIDs); err != nil {
		return nil, err
	}
	user.Teams = teamRefs(teamIDs)

	return user, nil
}

// UpdatePermissions replaces a user's directly granted permissions. Unknown
// permission strings are dropped, never stored.
func (s *UserService) UpdatePermissions(ctx context.Context, id uuid.UUID, permissions []string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.CustomPermissions = domain.NormalizePermissions(permissions)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user. The system always retains at least one admin, so
// deleting the last admin is rejected.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if user.IsAdmin() {
		others, err := s.users.CountAdminsExcept(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if others == 0 {
			return ErrLastAdmin
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info(ctx, "user deleted",
		logger.Module("user"),
		logger.Action("delete"),
		zap.String("user_id", id.String()),
	)
	return nil
}

// guardedRoles normalizes a proposed role set and rejects changes that would
// leave the system without an admin or the user without any role.
func (s *UserService) guardedRoles(ctx context.Context, user *domain.User, proposed []string) ([]domain.Role, error) {
	roles := domain.NormalizeRoles(proposed)
	if len(roles) == 0 {
		return nil, &domain.FieldError{Field: "roles", Message: "at least one valid role is required"}
	}

	if user.IsAdmin() && !domain.ContainsRole(roles, domain.RoleAdmin) {
		others, err := s.users.CountAdminsExcept(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("count admins: %w", err)
		}
		if others == 0 {
			return nil, ErrLastAdmin
		}
	}

	return roles, nil
}

func teamRefs(ids []uuid.UUID) []domain.TeamRef {
	refs := make([]domain.TeamRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.UnresolvedTeam(id))
	}
	return refs
}

func roleStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
