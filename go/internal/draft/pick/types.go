package pick

import (
	"github.com/google/uuid"
)

// SubmitPickRequest represents a participant's request to claim a resource
type SubmitPickRequest struct {
	DraftID       uuid.UUID `json:"draft_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	ResourceID    uuid.UUID `json:"resource_id"`
}
