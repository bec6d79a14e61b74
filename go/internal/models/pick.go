package models

import (
	"time"

	"github.com/google/uuid"
)

// Pick is an immutable commitment of a resource to a participant.
type Pick struct {
	ID            uuid.UUID `json:"id"`
	DraftID       uuid.UUID `json:"draft_id"`
	PickNumber    int       `json:"pick_number"`
	Round         int       `json:"round"`
	ParticipantID uuid.UUID `json:"participant_id"`
	ResourceID    uuid.UUID `json:"resource_id"`
	IsAutoPick    bool      `json:"is_auto_pick"`
	CommittedAt   time.Time `json:"committed_at"`
}
