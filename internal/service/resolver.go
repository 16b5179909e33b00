package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"taskdeck-api/internal/domain"
)

// Resolver joins unresolved team references with stored team data. It backs
// the lazy population step of permission checks: the authorization middleware
// only pays for the teams query when a user's references are still bare IDs.
type Resolver struct {
	teams TeamStore
}

func NewResolver(teams TeamStore) *Resolver {
	return &Resolver{teams: teams}
}

// ResolveTeams replaces the user's unresolved team references with resolved
// ones. Inactive teams resolve like any other team — they contribute no
// permissions but stop counting as unresolved, so a permission check never
// re-queries for them. References to teams that no longer exist are dropped.
func (r *Resolver) ResolveTeams(ctx context.Context, user *domain.User) error {
	if !domain.AnyUnresolved(user.Teams) {
		return nil
	}

	pending := make([]uuid.UUID, 0, len(user.Teams))
	for _, ref := range user.Teams {
		if !ref.Resolved() {
			pending = append(pending, ref.ID())
		}
	}

	teams, err := r.teams.FindByIDs(ctx, pending)
	if err != nil {
		return fmt.Errorf("resolve teams: %w", err)
	}
	byID := make(map[uuid.UUID]domain.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}

	resolved := make([]domain.TeamRef, 0, len(user.Teams))
	for _, ref := range user.Teams {
		if ref.Resolved() {
			resolved = append(resolved, ref)
			continue
		}
		if t, ok := byID[ref.ID()]; ok {
			resolved = append(resolved, domain.ResolvedTeam(t))
		}
	}
	user.Teams = resolved

	return nil
}

// EffectivePermissions resolves the user's team references and computes the
// effective permission set.
func (r *Resolver) EffectivePermissions(ctx context.Context, user *domain.User) (domain.PermissionSet, error) {
	if err := r.ResolveTeams(ctx, user); err != nil {
		return nil, err
	}
	return user.EffectivePermissions(), nil
}
