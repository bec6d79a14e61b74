package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPickCommitted(t *testing.T) {
	now := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	deadline := now.Add(30 * time.Second)
	pick := models.Pick{
		ID:            uuid.New(),
		DraftID:       uuid.New(),
		PickNumber:    3,
		Round:         1,
		ParticipantID: uuid.New(),
		ResourceID:    uuid.New(),
		CommittedAt:   now,
	}

	ev, err := NewPickCommitted(pick, &deadline)
	require.NoError(t, err)
	require.NoError(t, ev.Validate())
	assert.Equal(t, EventTypePickCommitted, ev.Type)
	assert.Equal(t, pick.DraftID, ev.DraftID)
	assert.Equal(t, "3", ev.Headers[HeaderPickNumber])

	payload, err := ev.PickCommitted()
	require.NoError(t, err)
	assert.Equal(t, pick.ID, payload.Pick.ID)
	assert.Equal(t, 3, payload.Pick.PickNumber)
	require.NotNil(t, payload.TimerDeadline)
	assert.True(t, deadline.Equal(*payload.TimerDeadline))

	_, err = ev.DraftStatusChanged()
	assert.Error(t, err)
}

func TestEnvelopeJSON(t *testing.T) {
	at := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	ev, err := NewDraftStatusChanged(uuid.New(), models.DraftStatusInProgress, models.DraftStatusPaused, nil, at)
	require.NoError(t, err)

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "DraftStatusChanged", raw["eventType"])
	assert.Equal(t, ev.DraftID.String(), raw["draftId"])
	assert.Equal(t, ev.ID.String(), raw["eventId"])

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	payload, err := decoded.DraftStatusChanged()
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPaused, payload.Status)
	assert.Equal(t, models.DraftStatusInProgress, payload.PreviousStatus)
	assert.Nil(t, payload.TimerDeadline)
}

func TestValidate(t *testing.T) {
	ev := Event{ID: uuid.New(), DraftID: uuid.New(), Type: "PickMade", Payload: json.RawMessage(`{}`)}
	assert.Error(t, ev.Validate())

	ev.Type = EventTypePickCommitted
	assert.NoError(t, ev.Validate())

	ev.Payload = json.RawMessage(`{`)
	assert.Error(t, ev.Validate())

	ev.Payload = json.RawMessage(`{}`)
	ev.DraftID = uuid.Nil
	assert.Error(t, ev.Validate())
}
