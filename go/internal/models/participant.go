package models

import (
	"github.com/google/uuid"
)

// Participant is a league member seat eligible to draft. DraftSlot is zero
// until assigned. UserID is nil for an unfilled seat.
type Participant struct {
	ID           uuid.UUID  `json:"id"`
	LeagueID     uuid.UUID  `json:"league_id"`
	DraftSlot    int        `json:"draft_slot"`
	DisplayLabel string     `json:"display_label"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
}
