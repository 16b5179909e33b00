package service

import (
	"errors"

	"taskdeck-api/internal/repo"
)

// Storage sentinels re-exported so handlers depend on the service layer only.
var (
	ErrUserNotFound     = repo.ErrUserNotFound
	ErrEmailConflict    = repo.ErrEmailConflict
	ErrTeamNotFound     = repo.ErrTeamNotFound
	ErrTeamNameConflict = repo.ErrTeamNameConflict
	ErrTaskNotFound     = repo.ErrTaskNotFound
)

// Invariant violations. Rejected synchronously, before any state mutation.
var (
	ErrLastAdmin       = errors.New("cannot remove the last admin")
	ErrSystemTeam      = errors.New("system teams cannot be renamed or deleted")
	ErrTeamHasMembers  = errors.New("team still has members")
	ErrUnknownAssignee = errors.New("assignee does not exist")
)

// Authentication failures. Login never reveals which of email or password was
// wrong; a locked account is reported as locked regardless of the password.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
)

// ErrNotAssignee rejects a reassignment by a caller who is not a current
// assignee, the legacy owner, or an admin. Distinct from not-found: the
// caller can see the task, they just cannot change its assignment.
var ErrNotAssignee = errors.New("only a current assignee, the owner, or an admin may reassign a task")
