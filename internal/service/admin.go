package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/events"
	"taskdeck-api/internal/observability/logger"
)

// AdminService backs the admin reporting and task-management surface. Every
// listing and figure it produces excludes archived tasks: archives are gone
// from reporting.
type AdminService struct {
	tasks TaskStore
	users UserStore
	pub   events.Publisher
	log   *logger.Logger
}

func NewAdminService(tasks TaskStore, users UserStore, pub events.Publisher, log *logger.Logger) *AdminService {
	return &AdminService{tasks: tasks, users: users, pub: pub, log: log}
}

// ListTasks returns unarchived tasks across all users with admin filters.
func (s *AdminService) ListTasks(ctx context.Context, params domain.AdminListTasksParams) (*domain.TaskListResponse, error) {
	params.Normalize()

	tasks, total, err := s.tasks.ListAdmin(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	ids := []uuid.UUID{}
	for i := range tasks {
		ids = append(ids, tasks[i].Assignees...)
		if tasks[i].OwnerID != nil {
			ids = append(ids, *tasks[i].OwnerID)
		}
	}
	refs, err := s.users.RefsByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("load user refs: %w", err)
	}
	for i := range tasks {
		applyRefs(&tasks[i], refs)
	}

	return &domain.TaskListResponse{
		Tasks: tasks,
		Pagination: domain.Pagination{
			Current: params.Page,
			Pages:   pageCount(total, params.Limit),
			Total:   total,
		},
	}, nil
}

// Stats aggregates unarchived tasks by status, priority, and assignee, with
// user display fields joined in. The per-assignee breakdown is ordered by
// workload, heaviest first.
func (s *AdminService) Stats(ctx context.Context) (*domain.TaskStats, error) {
	byStatus, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	byPriority, err := s.tasks.CountByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	byAssignee, err := s.tasks.CountByAssignee(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by assignee: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(byAssignee))
	for id := range byAssignee {
		ids = append(ids, id)
	}
	refs, err := s.users.RefsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load user refs: %w", err)
	}

	assigneeStats := make([]domain.AssigneeStats, 0, len(byAssignee))
	for id, count := range byAssignee {
		ref, ok := refs[id]
		if !ok {
			// Assignee deleted after assignment; keep the counts with a
			// bare ID so totals still add up.
			ref = domain.UserRef{ID: id}
		}
		assigneeStats = append(assigneeStats, domain.AssigneeStats{
			User:      ref,
			Total:     count.Total,
			Completed: count.Completed,
		})
	}
	sort.Slice(assigneeStats, func(i, j int) bool {
		if assigneeStats[i].Total != assigneeStats[j].Total {
			return assigneeStats[i].Total > assigneeStats[j].Total
		}
		return assigneeStats[i].User.ID.String() < assigneeStats[j].User.ID.String()
	})

	var total int64
	for _, count := range byStatus {
		total += count
	}

	return &domain.TaskStats{
		Total:      total,
		ByStatus:   byStatus,
		ByPriority: byPriority,
		ByAssignee: assigneeStats,
	}, nil
}

// UpdateTask applies a partial update to any task, bypassing the
// assignee/owner visibility filter. Same contract as the user-facing update:
// empty diff saves nothing, completedAt is derived with the status change,
// exactly one history record per non-empty diff.
func (s *AdminService) UpdateTask(ctx context.Context, actor *domain.User, id uuid.UUID, req *domain.UpdateTaskRequest) (*domain.Task, error) {
	now := time.Now().UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Assignees != nil {
		proposed := dedupeIDs(*req.Assignees)
		if err := requireExisting(ctx, s.users, proposed); err != nil {
			return nil, err
		}
		req.Assignees = &proposed
	}

	oldAssignees := append([]uuid.UUID(nil), task.Assignees...)
	changes := domain.ApplyUpdate(task, req)
	domain.NormalizeAssignees(task)
	if changes.IsEmpty() {
		if err := attachRefs(ctx, s.users, task); err != nil {
			return nil, err
		}
		return task, nil
	}
	domain.DeriveCompletedAt(task, now)

	entry := domain.NewHistoryEntry(domain.HistoryUpdated, actor.ID, changes, now)
	if err := s.tasks.Save(ctx, task, &entry); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.log.Info(ctx, "task updated",
		logger.Module("admin"),
		logger.Action("update"),
		zap.String("task_id", task.ID.String()),
	)

	s.pub.Publish(ctx, events.Fanout(oldAssignees, task.Assignees, task.OwnerID), events.Event{
		Type:      events.TaskUpdated,
		Task:      task,
		ActorID:   actor.ID,
		Timestamp: now,
	})

	if err := attachRefs(ctx, s.users, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Assign sets a task's legacy single owner. Kept for backward compatibility
// with clients that predate multi-assignee tasks; records the "assigned"
// history action.
func (s *AdminService) Assign(ctx context.Context, actor *domain.User, taskID, userID uuid.UUID) (*domain.Task, error) {
	now := time.Now().UTC()

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAssignee, userID)
		}
		return nil, fmt.Errorf("find assignee: %w", err)
	}

	if task.OwnerID != nil && *task.OwnerID == userID {
		return task, nil
	}

	oldAudience := append([]uuid.UUID(nil), task.Assignees...)
	if task.OwnerID != nil {
		oldAudience = append(oldAudience, *task.OwnerID)
	}

	changes := domain.OwnerChange(task.OwnerID, &userID)
	task.OwnerID = &userID
	if !task.IsAssignee(userID) {
		task.Assignees = append(task.Assignees, userID)
	}

	entry := domain.NewHistoryEntry(domain.HistoryAssigned, actor.ID, changes, now)
	if err := s.tasks.Save(ctx, task, &entry); err != nil {
		return nil, fmt.Errorf("assign task: %w", err)
	}

	s.log.Info(ctx, "task assigned",
		logger.Module("admin"),
		logger.Action("assign"),
		zap.String("task_id", task.ID.String()),
		zap.String("assignee_id", userID.String()),
	)

	s.pub.Publish(ctx, events.Fanout(oldAudience, task.Assignees, task.OwnerID), events.Event{
		Type:      events.TaskUpdated,
		Task:      task,
		ActorID:   actor.ID,
		Timestamp: now,
	})

	return task, nil
}
