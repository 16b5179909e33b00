package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TaskStatus is the task lifecycle state. The set is closed but there is no
// enforced transition graph: any status may move to any other status. The
// only derived behavior is the completedAt timestamp tied to entering and
// leaving StatusCompleted.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// IsValid reports whether the status is one of the defined constants.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Scan implements sql.Scanner.
func (s *TaskStatus) Scan(src interface{}) error {
	if src == nil {
		*s = StatusPending
		return nil
	}
	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TaskStatus", src)
	}
	*s = TaskStatus(str)
	if !s.IsValid() {
		return fmt.Errorf("invalid TaskStatus value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer.
func (s TaskStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid TaskStatus value: %s", string(s))
	}
	return string(s), nil
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// IsValid reports whether the priority is one of the defined constants.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Scan implements sql.Scanner.
func (p *TaskPriority) Scan(src interface{}) error {
	if src == nil {
		*p = PriorityMedium
		return nil
	}
	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TaskPriority", src)
	}
	*p = TaskPriority(str)
	if !p.IsValid() {
		return fmt.Errorf("invalid TaskPriority value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer.
func (p TaskPriority) Value() (driver.Value, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid TaskPriority value: %s", string(p))
	}
	return string(p), nil
}

const maxTagLength = 30

// Task is the unit of work being tracked.
//
// OwnerID is the legacy single-owner reference kept for backward
// compatibility; normalization folds it into Assignees whenever the assignee
// set is observed empty. From the application's perspective the assignee set
// is therefore never empty.
type Task struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Status      TaskStatus   `json:"status" db:"status"`
	Priority    TaskPriority `json:"priority" db:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty" db:"due_date"`
	Tags        []string     `json:"tags" db:"tags"`

	OwnerID   *uuid.UUID  `json:"ownerId,omitempty" db:"owner_id"`
	Assignees []uuid.UUID `json:"assignees" db:"assignees"`

	IsArchived bool `json:"isArchived" db:"is_archived"`

	// CompletedAt is derived: non-nil iff Status == StatusCompleted. The
	// derivation runs on every save that changes status.
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// History is the append-only state-transition log. Entries are immutable
	// once appended.
	History []HistoryEntry `json:"history,omitempty" db:"-"`

	// Display projections, populated on reads that join user data.
	Owner        *UserRef  `json:"owner,omitempty" db:"-"`
	AssigneeRefs []UserRef `json:"assigneeRefs,omitempty" db:"-"`
}

// IsAssignee reports whether userID is in the assignee set.
func (t *Task) IsAssignee(userID uuid.UUID) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID matches the legacy owner reference.
func (t *Task) IsOwner(userID uuid.UUID) bool {
	return t.OwnerID != nil && *t.OwnerID == userID
}

// validateTags trims tags and enforces the per-tag length limit.
func validateTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > maxTagLength {
			return nil, &FieldError{Field: "tags", Message: fmt.Sprintf("tag cannot exceed %d characters", maxTagLength)}
		}
		out = append(out, tag)
	}
	return out, nil
}

// validateDueDate enforces the strictly-in-the-future rule at set time.
func validateDueDate(due *time.Time, now time.Time) error {
	if due != nil && !due.After(now) {
		return &FieldError{Field: "dueDate", Message: "due date must be in the future"}
	}
	return nil
}

// CreateTaskRequest is the DTO for task creation. The creator is always
// folded into the assignee set.
type CreateTaskRequest struct {
	Title       string       `json:"title" validate:"required,min=1,max=200"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Assignees   []uuid.UUID  `json:"assignees,omitempty"`
}

// Validate sanitizes the request, applies defaults, and validates it against
// the task constraints.
func (r *CreateTaskRequest) Validate(now time.Time) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if !r.Status.IsValid() {
		return &FieldError{Field: "status", Message: "status must be pending, in-progress, completed, or cancelled"}
	}
	if !r.Priority.IsValid() {
		return &FieldError{Field: "priority", Message: "priority must be low, medium, high, or urgent"}
	}
	if err := validateDueDate(r.DueDate, now); err != nil {
		return err
	}
	tags, err := validateTags(r.Tags)
	if err != nil {
		return err
	}
	r.Tags = tags

	validate := validator.New()
	return validate.Struct(r)
}

// UpdateTaskRequest is the DTO for partial task updates. Nil = don't modify.
type UpdateTaskRequest struct {
	Title       *string       `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	Tags        *[]string     `json:"tags,omitempty"`
	Assignees   *[]uuid.UUID  `json:"assignees,omitempty"`
}

// Validate sanitizes and validates the request.
func (r *UpdateTaskRequest) Validate(now time.Time) error {
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
	}
	if r.Status != nil && !r.Status.IsValid() {
		return &FieldError{Field: "status", Message: "status must be pending, in-progress, completed, or cancelled"}
	}
	if r.Priority != nil && !r.Priority.IsValid() {
		return &FieldError{Field: "priority", Message: "priority must be low, medium, high, or urgent"}
	}
	if err := validateDueDate(r.DueDate, now); err != nil {
		return err
	}
	if r.Tags != nil {
		tags, err := validateTags(*r.Tags)
		if err != nil {
			return err
		}
		r.Tags = &tags
	}

	validate := validator.New()
	return validate.Struct(r)
}

// ReassignTaskRequest replaces a task's assignee set.
type ReassignTaskRequest struct {
	Assignees []uuid.UUID `json:"assignees"`
}

// ListTasksParams are the filters for the user-scoped task listing. Tasks
// are visible when the caller is in the assignee set or is the legacy owner;
// archived tasks are excluded.
type ListTasksParams struct {
	UserID uuid.UUID

	Status   *TaskStatus
	Priority *TaskPriority

	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize applies listing defaults.
func (p *ListTasksParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 10
	}
	if p.SortBy == "" {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
}

// AdminListTasksParams are the filters for the admin task listing. The
// listing is unconditionally restricted to unarchived tasks; archived tasks
// are invisible to reporting.
type AdminListTasksParams struct {
	Status   *TaskStatus
	Priority *TaskPriority
	UserID   *uuid.UUID
	Search   *string

	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize applies listing defaults.
func (p *AdminListTasksParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.SortBy == "" {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
	if p.Search != nil {
		s := strings.TrimSpace(*p.Search)
		if s == "" {
			p.Search = nil
		} else {
			p.Search = &s
		}
	}
}

// Pagination is the page metadata returned by listings.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// TaskListResponse is the paginated task listing payload.
type TaskListResponse struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// AssigneeCount summarizes one user's unarchived workload.
type AssigneeCount struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
}

// AssigneeStats is one row of the per-assignee breakdown in admin stats.
type AssigneeStats struct {
	User      UserRef `json:"user"`
	Total     int64   `json:"total"`
	Completed int64   `json:"completed"`
}

// TaskStats is the admin reporting payload. Archived tasks are excluded from
// every figure.
type TaskStats struct {
	Total      int64                  `json:"total"`
	ByStatus   map[TaskStatus]int64   `json:"byStatus"`
	ByPriority map[TaskPriority]int64 `json:"byPriority"`
	ByAssignee []AssigneeStats        `json:"byAssignee"`
}
