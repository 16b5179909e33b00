package events

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"taskdeck-api/internal/domain"
)

// Type identifies a task lifecycle event on the wire.
type Type string

const (
	TaskCreated Type = "task:created"
	TaskUpdated Type = "task:updated"
)

// AdminChannel receives every task event regardless of audience.
const AdminChannel = "admin"

// UserChannel returns the per-user notification channel name.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Event is the payload delivered to notification channels.
type Event struct {
	Type      Type         `json:"event"`
	Task      *domain.Task `json:"task"`
	ActorID   uuid.UUID    `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher delivers events to channels. Delivery is best-effort and
// at-most-once: implementations log failures instead of surfacing them, and
// callers never treat a publish failure as a mutation failure. Publish must
// not block the caller on the transport; a mutation's response is never held
// up by delivery.
type Publisher interface {
	Publish(ctx context.Context, channels []string, event Event)
}

// NopPublisher discards events. Used in tests and when realtime delivery is
// not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []string, Event) {}

// Fanout computes the channels interested in a task transition: every
// assignee before and after the change, the legacy owner, and the admin
// channel. Users dropped by a reassignment still hear about it. Channels are
// deduplicated and sorted for deterministic delivery order.
func Fanout(oldAssignees, newAssignees []uuid.UUID, ownerID *uuid.UUID) []string {
	seen := map[string]struct{}{AdminChannel: {}}

	for _, id := range oldAssignees {
		seen[UserChannel(id)] = struct{}{}
	}
	for _, id := range newAssignees {
		seen[UserChannel(id)] = struct{}{}
	}
	if ownerID != nil {
		seen[UserChannel(*ownerID)] = struct{}{}
	}

	channels := make([]string, 0, len(seen))
	for ch := range seen {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}
