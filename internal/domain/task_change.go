package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryAction tags a history entry with the kind of state transition.
type HistoryAction string

const (
	HistoryCreated          HistoryAction = "created"
	HistoryUpdated          HistoryAction = "updated"
	HistoryAssigned         HistoryAction = "assigned"
	HistoryAssigneesUpdated HistoryAction = "assignees_updated"
	HistoryArchived         HistoryAction = "archived"
	HistoryRestored         HistoryAction = "restored"
)

// HistoryEntry is one immutable record in a task's append-only history log.
// Changes carries a per-field {from, to} record, or a snapshot of the
// initiating payload for HistoryCreated.
type HistoryEntry struct {
	Action    HistoryAction          `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	ActorID   uuid.UUID              `json:"actor"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
}

// FieldChange records a single field transition inside a history entry.
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// ChangeSet maps field names to their transitions. An empty set means the
// mutation was a no-op and no history entry is appended.
type ChangeSet map[string]interface{}

// IsEmpty reports whether no field actually changed.
func (c ChangeSet) IsEmpty() bool {
	return len(c) == 0
}

// EqualAssigneeSets compares two assignee lists as unordered sets. Order
// must never cause spurious change detection.
func EqualAssigneeSets(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// assigneeStrings renders an assignee set for history records.
func assigneeStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// NormalizeAssignees folds the legacy single-owner reference into the
// assignee set when the set is observed empty. It runs at the start of every
// mutation path, not hidden in a persistence hook, so the migration is
// directly testable.
func NormalizeAssignees(t *Task) {
	if len(t.Assignees) == 0 && t.OwnerID != nil {
		t.Assignees = []uuid.UUID{*t.OwnerID}
	}
}

// DeriveCompletedAt keeps the completion timestamp consistent with status:
// set exactly when status transitions into completed, cleared when it
// transitions away. Runs on every save that changes status, as part of the
// same mutation.
func DeriveCompletedAt(t *Task, now time.Time) {
	switch {
	case t.Status == StatusCompleted && t.CompletedAt == nil:
		t.CompletedAt = &now
	case t.Status != StatusCompleted && t.CompletedAt != nil:
		t.CompletedAt = nil
	}
}

// ApplyUpdate applies the non-nil fields of req to t and returns the
// field-level change set. The history field itself is never diffed.
// Assignee changes are detected by set equality, not list equality.
func ApplyUpdate(t *Task, req *UpdateTaskRequest) ChangeSet {
	changes := make(ChangeSet)

	if req.Title != nil && *req.Title != t.Title {
		changes["title"] = FieldChange{From: t.Title, To: *req.Title}
		t.Title = *req.Title
	}
	if req.Description != nil && *req.Description != t.Description {
		changes["description"] = FieldChange{From: t.Description, To: *req.Description}
		t.Description = *req.Description
	}
	if req.Status != nil && *req.Status != t.Status {
		changes["status"] = FieldChange{From: t.Status, To: *req.Status}
		t.Status = *req.Status
	}
	if req.Priority != nil && *req.Priority != t.Priority {
		changes["priority"] = FieldChange{From: t.Priority, To: *req.Priority}
		t.Priority = *req.Priority
	}
	if req.DueDate != nil && !timePtrEqual(req.DueDate, t.DueDate) {
		changes["dueDate"] = FieldChange{From: t.DueDate, To: req.DueDate}
		t.DueDate = req.DueDate
	}
	if req.Tags != nil && !stringSlicesEqual(*req.Tags, t.Tags) {
		changes["tags"] = FieldChange{From: t.Tags, To: *req.Tags}
		t.Tags = *req.Tags
	}
	if req.Assignees != nil && !EqualAssigneeSets(*req.Assignees, t.Assignees) {
		changes["assignees"] = FieldChange{
			From: assigneeStrings(t.Assignees),
			To:   assigneeStrings(*req.Assignees),
		}
		t.Assignees = *req.Assignees
	}

	return changes
}

// AssigneesChange records a reassignment as an unordered set transition.
func AssigneesChange(from, to []uuid.UUID) ChangeSet {
	return ChangeSet{"assignees": FieldChange{
		From: assigneeStrings(from),
		To:   assigneeStrings(to),
	}}
}

// OwnerChange records a legacy single-owner assignment.
func OwnerChange(from, to *uuid.UUID) ChangeSet {
	render := func(id *uuid.UUID) interface{} {
		if id == nil {
			return nil
		}
		return id.String()
	}
	return ChangeSet{"owner": FieldChange{From: render(from), To: render(to)}}
}

// NewHistoryEntry builds an immutable history record.
func NewHistoryEntry(action HistoryAction, actorID uuid.UUID, changes ChangeSet, now time.Time) HistoryEntry {
	var payload map[string]interface{}
	if len(changes) > 0 {
		payload = map[string]interface{}(changes)
	}
	return HistoryEntry{
		Action:    action,
		Timestamp: now,
		ActorID:   actorID,
		Changes:   payload,
	}
}

// CreationSnapshot captures the initiating payload for a task's "created"
// history entry.
func CreationSnapshot(t *Task) ChangeSet {
	snapshot := ChangeSet{
		"title":     t.Title,
		"status":    string(t.Status),
		"priority":  string(t.Priority),
		"assignees": assigneeStrings(t.Assignees),
	}
	if t.Description != "" {
		snapshot["description"] = t.Description
	}
	if t.DueDate != nil {
		snapshot["dueDate"] = t.DueDate
	}
	if len(t.Tags) > 0 {
		snapshot["tags"] = t.Tags
	}
	return snapshot
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
