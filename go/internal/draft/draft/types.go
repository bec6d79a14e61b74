package draft

import (
	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// CreateDraftRequest represents a request to create a new draft. The settings
// come from the league's configuration.
type CreateDraftRequest struct {
	LeagueID         uuid.UUID `json:"league_id" validate:"required"`
	ParticipantCount int       `json:"participant_count" validate:"min=2,max=64"`
	Rounds           int       `json:"rounds" validate:"min=1,max=100"`
	PickTimerSeconds int       `json:"pick_timer_seconds" validate:"min=5,max=86400"`
}

// SlotAssignment places a participant at a draft slot
type SlotAssignment struct {
	ParticipantID uuid.UUID `json:"participant_id" validate:"required"`
	DraftSlot     int       `json:"draft_slot" validate:"min=1"`
}

// AssignDraftSlotsRequest represents a request to set the draft order
type AssignDraftSlotsRequest struct {
	DraftID uuid.UUID        `json:"draft_id" validate:"required"`
	Slots   []SlotAssignment `json:"slots" validate:"required,min=1,dive"`
}

// Turn describes who is on the clock.
type Turn struct {
	Participant models.Participant `json:"participant"`
	PickNumber  int                `json:"pick_number"`
	Round       int                `json:"round"`
	PickInRound int                `json:"pick_in_round"`
}
