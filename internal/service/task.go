package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/events"
	"taskdeck-api/internal/observability/logger"
)

// TaskService implements the task mutation contract: every mutating operation
// loads current state, diffs, normalizes the legacy owner into the assignee
// set, derives completedAt from status, appends exactly one history record
// per non-empty diff atomically with the save, and fans the change out to
// interested parties after commit. Fan-out is best-effort and never fails the
// mutation.
type TaskService struct {
	tasks TaskStore
	users UserStore
	pub   events.Publisher
	log   *logger.Logger
}

func NewTaskService(tasks TaskStore, users UserStore, pub events.Publisher, log *logger.Logger) *TaskService {
	return &TaskService{tasks: tasks, users: users, pub: pub, log: log}
}

// Create creates a task owned by the actor. The actor is folded into the
// assignee set if not already present, so the set is never empty.
func (s *TaskService) Create(ctx context.Context, actor *domain.User, req *domain.CreateTaskRequest) (*domain.Task, error) {
	now := time.Now().UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	assignees := dedupeIDs(req.Assignees)
	if err := requireExisting(ctx, s.users, assignees); err != nil {
		return nil, err
	}
	if !containsID(assignees, actor.ID) {
		assignees = append(assignees, actor.ID)
	}

	ownerID := actor.ID
	task := &domain.Task{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		OwnerID:     &ownerID,
		Assignees:   assignees,
	}
	domain.NormalizeAssignees(task)
	domain.DeriveCompletedAt(task, now)

	entry := domain.NewHistoryEntry(domain.HistoryCreated, actor.ID, domain.CreationSnapshot(task), now)
	if err := s.tasks.Create(ctx, task, &entry); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	task.History = []domain.HistoryEntry{entry}

	s.log.Info(ctx, "task created",
		logger.Module("task"),
		logger.Action("create"),
		zap.String("task_id", task.ID.String()),
	)

	s.pub.Publish(ctx, events.Fanout(nil, task.Assignees, task.OwnerID), events.Event{
		Type:      events.TaskCreated,
		Task:      task,
		ActorID:   actor.ID,
		Timestamp: now,
	})

	if err := attachRefs(ctx, s.users, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get loads a task visible to the actor, including its history and display
// projections. Non-owned and (for non-admins) archived tasks read as not
// found rather than forbidden, so existence never leaks.
func (s *TaskService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Task, error) {
	task, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	history, err := s.tasks.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	task.History = history

	if err := attachRefs(ctx, s.users, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Update applies a partial update. An update whose computed diff is empty
// saves nothing, appends no history, and emits no event.
func (s *TaskService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, req *domain.UpdateTaskRequest) (*domain.Task, error) {
	now := time.Now().UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	task, err := s.loadVisible(ctx, actor, id)
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

	s.publishUpdated(ctx, task, actor.ID, oldAssignees, now)

	if err := attachRefs(ctx, s.users, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Reassign replaces the assignee set. Only a current assignee, the legacy
// owner, or an admin may reassign; this rejection is distinct from not-found.
// Every proposed assignee must exist or the whole operation is rejected, and
// set comparison is unordered so input order never produces a spurious
// history record.
func (s *TaskService) Reassign(ctx context.Context, actor *domain.User, id uuid.UUID, req *domain.ReassignTaskRequest) (*domain.Task, error) {
	now := time.Now().UTC()

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsArchived && !actor.IsAdmin() {
		return nil, ErrTaskNotFound
	}
	if !canMutate(actor, task) {
		return nil, ErrNotAssignee
	}

	proposed := dedupeIDs(req.Assignees)
	if len(proposed) == 0 && task.OwnerID == nil {
		return nil, &domain.FieldError{Field: "assignees", Message: "at least one assignee is required"}
	}
	if err := requireExisting(ctx, s.users, proposed); err != nil {
		return nil, err
	}

	if domain.EqualAssigneeSets(task.Assignees, proposed) {
		if err := attachRefs(ctx, s.users, task); err != nil {
			return nil, err
		}
		return task, nil
	}

	oldAssignees := task.Assignees
	changes := domain.AssigneesChange(oldAssignees, proposed)
	task.Assignees = proposed
	domain.NormalizeAssignees(task)

	entry := domain.NewHistoryEntry(domain.HistoryAssigneesUpdated, actor.ID, changes, now)
	if err := s.tasks.Save(ctx, task, &entry); err != nil {
		return nil, fmt.Errorf("reassign task: %w", err)
	}

	s.publishUpdated(ctx, task, actor.ID, oldAssignees, now)

	if err := attachRefs(ctx, s.users, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Archive soft-deletes a task. Archiving an already-archived task is a
// no-op: no save, no history.
func (s *TaskService) Archive(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Task, error) {
	return s.setArchived(ctx, actor, id, true)
}

// Restore brings an archived task back. Restoring an unarchived task is a
// no-op.
func (s *TaskService) Restore(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Task, error) {
	return s.setArchived(ctx, actor, id, false)
}

func (s *TaskService) setArchived(ctx context.Context, actor *domain.User, id uuid.UUID, archived bool) (*domain.Task, error) {
	now := time.Now().UTC()

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canMutate(actor, task) {
		return nil, ErrTaskNotFound
	}

	if task.IsArchived == archived {
		return task, nil
	}

	domain.NormalizeAssignees(task)
	task.IsArchived = archived

	action := domain.HistoryArchived
	if !archived {
		action = domain.HistoryRestored
	}
	entry := domain.NewHistoryEntry(action, actor.ID, nil, now)
	if err := s.tasks.Save(ctx, task, &entry); err != nil {
		return nil, fmt.Errorf("%s task: %w", action, err)
	}

	s.log.Info(ctx, "task archive state changed",
		logger.Module("task"),
		logger.Action(string(action)),
		zap.String("task_id", task.ID.String()),
	)

	s.publishUpdated(ctx, task, actor.ID, task.Assignees, now)
	return task, nil
}

// History returns a task's append-only history, oldest first.
func (s *TaskService) History(ctx context.Context, actor *domain.User, id uuid.UUID) ([]domain.HistoryEntry, error) {
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	history, err := s.tasks.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// List returns the actor's unarchived tasks (assignee or legacy owner), with
// pagination.
func (s *TaskService) List(ctx context.Context, actor *domain.User, params domain.ListTasksParams) (*domain.TaskListResponse, error) {
	params.UserID = actor.ID
	params.Normalize()

	tasks, total, err := s.tasks.ListForUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if err := s.attachRefsAll(ctx, tasks); err != nil {
		return nil, err
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

// loadVisible loads a task the actor may read. Tasks outside the actor's
// assignee/owner scope, and archived tasks for non-admins, read as not found.
func (s *TaskService) loadVisible(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canMutate(actor, task) {
		return nil, ErrTaskNotFound
	}
	if task.IsArchived && !actor.IsAdmin() {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// canMutate reports whether the actor is in the task's assignee set, is the
// legacy owner, or is an admin.
func canMutate(actor *domain.User, task *domain.Task) bool {
	return actor.IsAdmin() || task.IsAssignee(actor.ID) || task.IsOwner(actor.ID)
}

// requireExisting rejects the operation if any id does not belong to a
// stored user. No partial assignment.
func requireExisting(ctx context.Context, users UserStore, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	existing, err := users.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("validate assignees: %w", err)
	}
	if len(existing) == len(ids) {
		return nil
	}

	present := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAssignee, id)
		}
	}
	return nil
}

// publishUpdated fans a committed change out to the union of old and new
// assignees, the legacy owner, and the admin channel.
func (s *TaskService) publishUpdated(ctx context.Context, task *domain.Task, actorID uuid.UUID, oldAssignees []uuid.UUID, now time.Time) {
	s.pub.Publish(ctx, events.Fanout(oldAssignees, task.Assignees, task.OwnerID), events.Event{
		Type:      events.TaskUpdated,
		Task:      task,
		ActorID:   actorID,
		Timestamp: now,
	})
}

// attachRefs populates the owner and assignee display projections.
func attachRefs(ctx context.Context, users UserStore, task *domain.Task) error {
	ids := append([]uuid.UUID(nil), task.Assignees...)
	if task.OwnerID != nil {
		ids = append(ids, *task.OwnerID)
	}

	refs, err := users.RefsByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return fmt.Errorf("load user refs: %w", err)
	}
	applyRefs(task, refs)
	return nil
}

func (s *TaskService) attachRefsAll(ctx context.Context, tasks []domain.Task) error {
	ids := []uuid.UUID{}
	for i := range tasks {
		ids = append(ids, tasks[i].Assignees...)
		if tasks[i].OwnerID != nil {
			ids = append(ids, *tasks[i].OwnerID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	refs, err := s.users.RefsByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return fmt.Errorf("load user refs: %w", err)
	}
	for i := range tasks {
		applyRefs(&tasks[i], refs)
	}
	return nil
}

func applyRefs(task *domain.Task, refs map[uuid.UUID]domain.UserRef) {
	task.AssigneeRefs = make([]domain.UserRef, 0, len(task.Assignees))
	for _, id := range task.Assignees {
		if ref, ok := refs[id]; ok {
			task.AssigneeRefs = append(task.AssigneeRefs, ref)
		}
	}
	if task.OwnerID != nil {
		if ref, ok := refs[*task.OwnerID]; ok {
			task.Owner = &ref
		}
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
