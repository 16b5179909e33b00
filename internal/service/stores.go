package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskdeck-api/internal/domain"
)

// The store interfaces mirror the pgx repositories in internal/repo. Services
// consume them so tests can run against in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	SetTeams(ctx context.Context, userID uuid.UUID, teamIDs []uuid.UUID) error
	RecordLoginState(ctx context.Context, userID uuid.UUID, attempts int, lockUntil *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountAdminsExcept(ctx context.Context, excluded uuid.UUID) (int, error)
	ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	RefsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UserRef, error)
}

type TeamStore interface {
	Create(ctx context.Context, team *domain.Team) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Team, error)
	List(ctx context.Context) ([]domain.Team, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Team, error)
	Save(ctx context.Context, team *domain.Team) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	MemberCount(ctx context.Context, teamID uuid.UUID) (int, error)
	UpsertSystem(ctx context.Context, team *domain.Team) error
}

type TaskStore interface {
	Create(ctx context.Context, task *domain.Task, entry *domain.HistoryEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Save(ctx context.Context, task *domain.Task, entry *domain.HistoryEntry) error
	History(ctx context.Context, taskID uuid.UUID) ([]domain.HistoryEntry, error)
	ListForUser(ctx context.Context, params domain.ListTasksParams) ([]domain.Task, int64, error)
	ListAdmin(ctx context.Context, params domain.AdminListTasksParams) ([]domain.Task, int64, error)
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error)
	CountByPriority(ctx context.Context) (map[domain.TaskPriority]int64, error)
	CountByAssignee(ctx context.Context) (map[uuid.UUID]domain.AssigneeCount, error)
}

// pageCount computes the page count for a paginated listing.
func pageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	p := total / int64(limit)
	if total%int64(limit) != 0 {
		p++
	}
	return int(p)
}
