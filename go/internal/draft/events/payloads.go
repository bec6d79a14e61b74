package events

import (
	"time"

	"github.com/mcdev12/pooldraft/go/internal/models"
)

// Event payload types shared between the committer, the relay, the gateway and clients

// PickCommittedPayload is the payload for a PickCommitted event. TimerDeadline
// is the deadline of the next pick, nil when the pick completed the draft.
type PickCommittedPayload struct {
	Pick          models.Pick `json:"pick"`
	TimerDeadline *time.Time  `json:"timer_deadline,omitempty"`
}

// DraftStatusChangedPayload is the payload for a DraftStatusChanged event
type DraftStatusChangedPayload struct {
	Status         models.DraftStatus `json:"status"`
	PreviousStatus models.DraftStatus `json:"previous_status"`
	TimerDeadline  *time.Time         `json:"timer_deadline,omitempty"`
	ChangedAt      time.Time          `json:"changed_at"`
}
