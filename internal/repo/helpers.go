package repo

import (
	"github.com/google/uuid"

	"taskdeck-api/internal/domain"
)

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func permissionsToStrings(perms []domain.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

func refsFromIDs(ids []uuid.UUID) []domain.TeamRef {
	refs := make([]domain.TeamRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.UnresolvedTeam(id))
	}
	return refs
}
