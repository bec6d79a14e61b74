// Package events defines the draft event envelope published through the
// outbox and consumed by the orchestrator, the gateway and clients.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// EventType names a draft event.
type EventType string

const (
	EventTypePickCommitted      EventType = "PickCommitted"
	EventTypeDraftStatusChanged EventType = "DraftStatusChanged"
)

// Header keys copied onto broker messages.
const (
	HeaderEventID    = "Event-ID"
	HeaderEventType  = "Event-Type"
	HeaderDraftID    = "Draft-ID"
	HeaderPickNumber = "Pick-Number"
)

// Event is the envelope every draft event travels in. ID is stable across
// redeliveries, so consumers dedupe on it.
type Event struct {
	ID        uuid.UUID         `json:"eventId"`
	Type      EventType         `json:"eventType"`
	DraftID   uuid.UUID         `json:"draftId"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Headers   map[string]string `json:"-"`
}

// NewPickCommitted builds the event for a committed pick.
func NewPickCommitted(pick models.Pick, deadline *time.Time) (Event, error) {
	payload, err := json.Marshal(PickCommittedPayload{Pick: pick, TimerDeadline: deadline})
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal PickCommitted payload: %w", err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      EventTypePickCommitted,
		DraftID:   pick.DraftID,
		Timestamp: pick.CommittedAt,
		Payload:   payload,
		Headers:   map[string]string{HeaderPickNumber: strconv.Itoa(pick.PickNumber)},
	}, nil
}

// NewDraftStatusChanged builds the event for a draft status transition.
func NewDraftStatusChanged(draftID uuid.UUID, from, to models.DraftStatus, deadline *time.Time, at time.Time) (Event, error) {
	payload, err := json.Marshal(DraftStatusChangedPayload{
		Status:         to,
		PreviousStatus: from,
		TimerDeadline:  deadline,
		ChangedAt:      at,
	})
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal DraftStatusChanged payload: %w", err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      EventTypeDraftStatusChanged,
		DraftID:   draftID,
		Timestamp: at,
		Payload:   payload,
	}, nil
}

// PickCommitted decodes the payload of a PickCommitted event.
func (e Event) PickCommitted() (PickCommittedPayload, error) {
	var p PickCommittedPayload
	if e.Type != EventTypePickCommitted {
		return p, fmt.Errorf("event %s is %s, not %s", e.ID, e.Type, EventTypePickCommitted)
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal PickCommitted payload: %w", err)
	}
	return p, nil
}

// DraftStatusChanged decodes the payload of a DraftStatusChanged event.
func (e Event) DraftStatusChanged() (DraftStatusChangedPayload, error) {
	var p DraftStatusChangedPayload
	if e.Type != EventTypeDraftStatusChanged {
		return p, fmt.Errorf("event %s is %s, not %s", e.ID, e.Type, EventTypeDraftStatusChanged)
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal DraftStatusChanged payload: %w", err)
	}
	return p, nil
}

// Validate checks the envelope fields every consumer relies on.
func (e Event) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("event id is required")
	}
	if e.DraftID == uuid.Nil {
		return fmt.Errorf("draft id is required")
	}
	switch e.Type {
	case EventTypePickCommitted, EventTypeDraftStatusChanged:
	default:
		return fmt.Errorf("unknown event type: %s", e.Type)
	}
	if !json.Valid(e.Payload) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return nil
}
