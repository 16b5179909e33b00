package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskdeck-api/internal/domain"
)

var ErrTaskNotFound = errors.New("task not found")

// sortColumns whitelists the ORDER BY targets for task listings.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"priority":   "priority",
	"status":     "status",
	"title":      "title",
}

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, title, description, status, priority, due_date, tags,
       owner_id, assignees, is_archived, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DueDate, &t.Tags, &t.OwnerID, &t.Assignees,
		&t.IsArchived, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a task and its initial history entry in one transaction.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task, entry *domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date, tags,
		                   owner_id, assignees, is_archived, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.Tags, task.OwnerID, task.Assignees,
		task.IsArchived, task.CompletedAt,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := appendHistoryTx(ctx, tx, task.ID, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindByID loads a task regardless of archive state. Archive visibility is a
// service-level decision.
func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// Save persists a mutated task and appends its history entry atomically: a
// task state never becomes visible without the history record describing how
// it got there. A nil entry saves without appending.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task, entry *domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5,
		    due_date = $6, tags = $7, owner_id = $8, assignees = $9,
		    is_archived = $10, completed_at = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = tx.QueryRow(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.Tags, task.OwnerID, task.Assignees,
		task.IsArchived, task.CompletedAt,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	if err := appendHistoryTx(ctx, tx, task.ID, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// History returns a task's append-only history, oldest first.
func (r *TaskRepository) History(ctx context.Context, taskID uuid.UUID) ([]domain.HistoryEntry, error) {
	query := `SELECT action, actor_id, changes, timestamp FROM task_history WHERE task_id = $1 ORDER BY timestamp ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task history: %w", err)
	}
	defer rows.Close()

	history := []domain.HistoryEntry{}
	for rows.Next() {
		var entry domain.HistoryEntry
		var changes []byte
		if err := rows.Scan(&entry.Action, &entry.ActorID, &changes, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, fmt.Errorf("decode history changes: %w", err)
			}
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// ListForUser returns the unarchived tasks visible to a user: those where
// the user is in the assignee set or is the legacy owner.
func (r *TaskRepository) ListForUser(ctx context.Context, params domain.ListTasksParams) ([]domain.Task, int64, error) {
	where := ` WHERE NOT is_archived AND ($1 = ANY(assignees) OR owner_id = $1)`
	args := []interface{}{params.UserID}
	argIdx := 2

	if params.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Priority != nil {
		where += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, *params.Priority)
		argIdx++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + orderClause(params.SortBy, params.SortOrder)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	tasks, err := r.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListAdmin returns unarchived tasks across all users with admin filters.
// Archived tasks stay invisible here too: reporting never sees them.
func (r *TaskRepository) ListAdmin(ctx context.Context, params domain.AdminListTasksParams) ([]domain.Task, int64, error) {
	where := ` WHERE NOT is_archived`
	args := []interface{}{}
	argIdx := 1

	if params.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Priority != nil {
		where += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, *params.Priority)
		argIdx++
	}
	if params.UserID != nil {
		where += fmt.Sprintf(" AND ($%d = ANY(assignees) OR owner_id = $%d)", argIdx, argIdx)
		args = append(args, *params.UserID)
		argIdx++
	}
	if params.Search != nil {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+*params.Search+"%")
		argIdx++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + orderClause(params.SortBy, params.SortOrder)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	tasks, err := r.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// CountByStatus groups unarchived tasks by status.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks WHERE NOT is_archived GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[domain.TaskStatus]int64{}
	for rows.Next() {
		var status domain.TaskStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountByPriority groups unarchived tasks by priority.
func (r *TaskRepository) CountByPriority(ctx context.Context) (map[domain.TaskPriority]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT priority, COUNT(*) FROM tasks WHERE NOT is_archived GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	defer rows.Close()

	counts := map[domain.TaskPriority]int64{}
	for rows.Next() {
		var priority domain.TaskPriority
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("scan priority count: %w", err)
		}
		counts[priority] = count
	}
	return counts, rows.Err()
}

// CountByAssignee groups unarchived tasks by assignee, with completed counts.
func (r *TaskRepository) CountByAssignee(ctx context.Context) (map[uuid.UUID]domain.AssigneeCount, error) {
	query := `
		SELECT a.assignee, COUNT(*), COUNT(*) FILTER (WHERE t.status = 'completed')
		FROM tasks t, unnest(t.assignees) AS a(assignee)
		WHERE NOT t.is_archived
		GROUP BY a.assignee
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by assignee: %w", err)
	}
	defer rows.Close()

	counts := map[uuid.UUID]domain.AssigneeCount{}
	for rows.Next() {
		var id uuid.UUID
		var c domain.AssigneeCount
		if err := rows.Scan(&id, &c.Total, &c.Completed); err != nil {
			return nil, fmt.Errorf("scan assignee count: %w", err)
		}
		counts[id] = c
	}
	return counts, rows.Err()
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func orderClause(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, direction)
}

func appendHistoryTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, entry *domain.HistoryEntry) error {
	if entry == nil {
		return nil
	}

	var changes []byte
	if entry.Changes != nil {
		var err error
		changes, err = json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("encode history changes: %w", err)
		}
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO task_history (task_id, action, actor_id, changes, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		taskID, entry.Action, entry.ActorID, changes, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}
