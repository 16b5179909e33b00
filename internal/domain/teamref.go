package domain

import "github.com/google/uuid"

// TeamRef is a reference to a team that is either unresolved (bare ID, as
// loaded from the membership join table) or resolved (full team record
// attached). Population state is a type-level fact: callers never have to
// guess whether a reference "looks populated".
type TeamRef struct {
	id   uuid.UUID
	team *Team
}

// UnresolvedTeam returns a reference carrying only the team ID.
func UnresolvedTeam(id uuid.UUID) TeamRef {
	return TeamRef{id: id}
}

// ResolvedTeam returns a reference carrying the full team record.
func ResolvedTeam(t Team) TeamRef {
	return TeamRef{id: t.ID, team: &t}
}

// ID returns the referenced team's ID, resolved or not.
func (r TeamRef) ID() uuid.UUID {
	return r.id
}

// Resolved reports whether the full team record is attached.
func (r TeamRef) Resolved() bool {
	return r.team != nil
}

// Team returns the attached record. ok is false for unresolved references.
func (r TeamRef) Team() (t *Team, ok bool) {
	return r.team, r.team != nil
}

// AnyUnresolved reports whether at least one reference still needs a team
// lookup before permissions can be resolved.
func AnyUnresolved(refs []TeamRef) bool {
	for _, r := range refs {
		if !r.Resolved() {
			return true
		}
	}
	return false
}

// TeamRefIDs collects the IDs of all references.
func TeamRefIDs(refs []TeamRef) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID())
	}
	return ids
}
