package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTaskStatusIsValid(t *testing.T) {
	assert.True(t, StatusPending.IsValid())
	assert.True(t, StatusInProgress.IsValid())
	assert.False(t, TaskStatus("done").IsValid())
	assert.False(t, TaskStatus("").IsValid())
}

func TestTaskIsAssignee(t *testing.T) {
	a := uuid.New()
	task := &Task{Assignees: []uuid.UUID{a, uuid.New()}}
	assert.True(t, task.IsAssignee(a))
	assert.False(t, task.IsAssignee(uuid.New()))
}

func TestCreateTaskRequestValidate(t *testing.T) {
	now := time.Now()

	t.Run("defaults applied", func(t *testing.T) {
		req := CreateTaskRequest{Title: "  ship it  "}
		assert.NoError(t, req.Validate(now))
		assert.Equal(t, "ship it", req.Title)
		assert.Equal(t, StatusPending, req.Status)
		assert.Equal(t, PriorityMedium, req.Priority)
	})

	t.Run("empty title rejected", func(t *testing.T) {
		req := CreateTaskRequest{Title: "   "}
		assert.Error(t, req.Validate(now))
	})

	t.Run("past due date rejected", func(t *testing.T) {
		past := now.Add(-time.Minute)
		req := CreateTaskRequest{Title: "ship it", DueDate: &past}
		err := req.Validate(now)
		assert.Error(t, err)
		fe := &FieldError{}
		assert.ErrorAs(t, err, &fe)
		assert.Equal(t, "dueDate", fe.Field)
	})

	t.Run("future due date accepted", func(t *testing.T) {
		future := now.Add(time.Hour)
		req := CreateTaskRequest{Title: "ship it", DueDate: &future}
		assert.NoError(t, req.Validate(now))
	})

	t.Run("blank tags dropped, oversized tag rejected", func(t *testing.T) {
		req := CreateTaskRequest{Title: "ship it", Tags: []string{" ops ", ""}}
		assert.NoError(t, req.Validate(now))
		assert.Equal(t, []string{"ops"}, req.Tags)

		req = CreateTaskRequest{Title: "ship it", Tags: []string{strings.Repeat("x", 31)}}
		assert.Error(t, req.Validate(now))
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		req := CreateTaskRequest{Title: "ship it", Status: "done"}
		assert.Error(t, req.Validate(now))
	})
}

func TestUpdateTaskRequestValidate(t *testing.T) {
	now := time.Now()

	t.Run("empty request is valid", func(t *testing.T) {
		req := UpdateTaskRequest{}
		assert.NoError(t, req.Validate(now))
	})

	t.Run("past due date rejected on update too", func(t *testing.T) {
		past := now.Add(-time.Hour)
		req := UpdateTaskRequest{DueDate: &past}
		assert.Error(t, req.Validate(now))
	})

	t.Run("invalid priority rejected", func(t *testing.T) {
		p := TaskPriority("critical")
		req := UpdateTaskRequest{Priority: &p}
		assert.Error(t, req.Validate(now))
	})
}

func TestListTasksParamsNormalize(t *testing.T) {
	p := ListTasksParams{Page: 0, Limit: 500, SortOrder: "sideways"}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "created_at", p.SortBy)
	assert.Equal(t, "desc", p.SortOrder)

	p = ListTasksParams{Page: 3, Limit: 25, SortBy: "due_date", SortOrder: "asc"}
	p.Normalize()
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, "due_date", p.SortBy)
	assert.Equal(t, "asc", p.SortOrder)
}

func TestAdminListTasksParamsNormalize(t *testing.T) {
	blank := "   "
	p := AdminListTasksParams{Search: &blank}
	p.Normalize()
	assert.Equal(t, 50, p.Limit)
	assert.Nil(t, p.Search, "blank search collapses to nil")
}
