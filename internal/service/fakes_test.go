package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/events"
	"taskdeck-api/internal/observability/logger"
)

// In-memory stores standing in for the pgx repositories. They copy on read
// and write so service-side mutations never leak into stored state without an
// explicit Save, matching how a real database behaves.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
	teams map[uuid.UUID][]uuid.UUID

	loginStates int
	failWith    error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users: map[uuid.UUID]domain.User{},
		teams: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeUserStore) add(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return ErrEmailConflict
		}
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = *user
	f.teams[user.ID] = domain.TeamRefIDs(user.Teams)
	return nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Teams = refsOf(f.teams[id])
	return &u, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u.Teams = refsOf(f.teams[u.ID])
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUserStore) List(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.User{}
	for _, u := range f.users {
		u.Teams = refsOf(f.teams[u.ID])
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserStore) Save(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserStore) SetTeams(_ context.Context, userID uuid.UUID, teamIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams[userID] = append([]uuid.UUID(nil), teamIDs...)
	return nil
}

func (f *fakeUserStore) RecordLoginState(_ context.Context, userID uuid.UUID, attempts int, lockUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.LoginAttempts = attempts
	u.LockUntil = lockUntil
	f.users[userID] = u
	f.loginStates++
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(f.users, id)
	delete(f.teams, id)
	return nil
}

func (f *fakeUserStore) CountAdminsExcept(_ context.Context, excluded uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, u := range f.users {
		if id != excluded && domain.ContainsRole(u.Roles, domain.RoleAdmin) {
			count++
		}
	}
	return count, nil
}

func (f *fakeUserStore) ExistingIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := []uuid.UUID{}
	for _, id := range ids {
		if _, ok := f.users[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (f *fakeUserStore) RefsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UserRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := map[uuid.UUID]domain.UserRef{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			refs[id] = domain.UserRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
		}
	}
	return refs, nil
}

type fakeTeamStore struct {
	mu      sync.Mutex
	teams   map[uuid.UUID]domain.Team
	members map[uuid.UUID]int

	findCalls int
	failWith  error
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{
		teams:   map[uuid.UUID]domain.Team{},
		members: map[uuid.UUID]int{},
	}
}

func (f *fakeTeamStore) add(t domain.Team) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams[t.ID] = t
}

func (f *fakeTeamStore) Create(_ context.Context, team *domain.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.teams {
		if existing.Name == team.Name {
			return ErrTeamNameConflict
		}
	}
	team.CreatedAt = time.Now().UTC()
	team.UpdatedAt = team.CreatedAt
	f.teams[team.ID] = *team
	return nil
}

func (f *fakeTeamStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return &t, nil
}

func (f *fakeTeamStore) List(_ context.Context) ([]domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Team{}
	for _, t := range f.teams {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTeamStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []domain.Team{}
	for _, id := range ids {
		if t, ok := f.teams[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTeamStore) Save(_ context.Context, team *domain.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teams[team.ID]; !ok {
		return ErrTeamNotFound
	}
	team.UpdatedAt = time.Now().UTC()
	f.teams[team.ID] = *team
	return nil
}

func (f *fakeTeamStore) SoftDelete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[id]
	if !ok {
		return ErrTeamNotFound
	}
	t.IsActive = false
	f.teams[id] = t
	return nil
}

func (f *fakeTeamStore) MemberCount(_ context.Context, teamID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[teamID], nil
}

func (f *fakeTeamStore) UpsertSystem(_ context.Context, team *domain.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.teams {
		if existing.Name == team.Name {
			team.ID = id
			existing.Permissions = team.Permissions
			existing.Description = team.Description
			existing.Color = team.Color
			existing.Icon = team.Icon
			existing.IsSystem = true
			f.teams[id] = existing
			return nil
		}
	}
	team.IsSystem = true
	team.IsActive = true
	f.teams[team.ID] = *team
	return nil
}

type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]domain.Task
	history map[uuid.UUID][]domain.HistoryEntry

	saves int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:   map[uuid.UUID]domain.Task{},
		history: map[uuid.UUID][]domain.HistoryEntry{},
	}
}

func (f *fakeTaskStore) add(t domain.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
}

func (f *fakeTaskStore) historyOf(id uuid.UUID) []domain.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.HistoryEntry(nil), f.history[id]...)
}

func (f *fakeTaskStore) stored(id uuid.UUID) domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id]
}

func (f *fakeTaskStore) Create(_ context.Context, task *domain.Task, entry *domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = *task
	if entry != nil {
		f.history[task.ID] = append(f.history[task.ID], *entry)
	}
	return nil
}

func (f *fakeTaskStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	t.Assignees = append([]uuid.UUID(nil), t.Assignees...)
	t.Tags = append([]string(nil), t.Tags...)
	return &t, nil
}

func (f *fakeTaskStore) Save(_ context.Context, task *domain.Task, entry *domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return ErrTaskNotFound
	}
	task.UpdatedAt = time.Now().UTC()
	f.tasks[task.ID] = *task
	if entry != nil {
		f.history[task.ID] = append(f.history[task.ID], *entry)
	}
	f.saves++
	return nil
}

func (f *fakeTaskStore) History(_ context.Context, taskID uuid.UUID) ([]domain.HistoryEntry, error) {
	return f.historyOf(taskID), nil
}

func (f *fakeTaskStore) ListForUser(_ context.Context, params domain.ListTasksParams) ([]domain.Task, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := []domain.Task{}
	for _, t := range f.tasks {
		if t.IsArchived {
			continue
		}
		if !t.IsAssignee(params.UserID) && !t.IsOwner(params.UserID) {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Priority != nil && t.Priority != *params.Priority {
			continue
		}
		matched = append(matched, t)
	}
	return paginate(matched, params.Page, params.Limit), int64(len(matched)), nil
}

func (f *fakeTaskStore) ListAdmin(_ context.Context, params domain.AdminListTasksParams) ([]domain.Task, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := []domain.Task{}
	for _, t := range f.tasks {
		if t.IsArchived {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Priority != nil && t.Priority != *params.Priority {
			continue
		}
		if params.UserID != nil && !t.IsAssignee(*params.UserID) && !t.IsOwner(*params.UserID) {
			continue
		}
		if params.Search != nil {
			needle := strings.ToLower(*params.Search)
			if !strings.Contains(strings.ToLower(t.Title), needle) &&
				!strings.Contains(strings.ToLower(t.Description), needle) {
				continue
			}
		}
		matched = append(matched, t)
	}
	return paginate(matched, params.Page, params.Limit), int64(len(matched)), nil
}

func (f *fakeTaskStore) CountByStatus(_ context.Context) (map[domain.TaskStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[domain.TaskStatus]int64{}
	for _, t := range f.tasks {
		if !t.IsArchived {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (f *fakeTaskStore) CountByPriority(_ context.Context) (map[domain.TaskPriority]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[domain.TaskPriority]int64{}
	for _, t := range f.tasks {
		if !t.IsArchived {
			counts[t.Priority]++
		}
	}
	return counts, nil
}

func (f *fakeTaskStore) CountByAssignee(_ context.Context) (map[uuid.UUID]domain.AssigneeCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[uuid.UUID]domain.AssigneeCount{}
	for _, t := range f.tasks {
		if t.IsArchived {
			continue
		}
		for _, id := range t.Assignees {
			c := counts[id]
			c.Total++
			if t.Status == domain.StatusCompleted {
				c.Completed++
			}
			counts[id] = c
		}
	}
	return counts, nil
}

// capturingPublisher records every fan-out for assertion.
type capturingPublisher struct {
	mu       sync.Mutex
	channels [][]string
	events   []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, channels []string, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channels)
	p.events = append(p.events, event)
}

func (p *capturingPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func paginate(tasks []domain.Task, page, limit int) []domain.Task {
	start := (page - 1) * limit
	if start >= len(tasks) {
		return []domain.Task{}
	}
	end := start + limit
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[start:end]
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("taskdeck-api", "error")
	require.NoError(t, err)
	return log
}

func refsOf(ids []uuid.UUID) []domain.TeamRef {
	refs := make([]domain.TeamRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.UnresolvedTeam(id))
	}
	return refs
}
