package models

import (
	"github.com/google/uuid"
)

// Resource is a draftable team or player. ClaimedBy references the pick that
// took it, and is nil while the resource is still in the pool.
type Resource struct {
	ID         uuid.UUID  `json:"id"`
	LeagueID   uuid.UUID  `json:"league_id"`
	Name       string     `json:"name"`
	RankOrSeed int        `json:"rank_or_seed"`
	ClaimedBy  *uuid.UUID `json:"claimed_by,omitempty"`
}

// Claimed reports whether a pick has taken this resource.
func (r *Resource) Claimed() bool {
	return r.ClaimedBy != nil
}
