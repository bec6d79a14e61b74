package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/order"
)

// DraftStatus defines the status of a draft.
type DraftStatus string

const (
	DraftStatusPreDraft   DraftStatus = "pre_draft"
	DraftStatusInProgress DraftStatus = "in_progress"
	DraftStatusPaused     DraftStatus = "paused"
	DraftStatusCompleted  DraftStatus = "completed"
)

// DraftSettings holds the league configuration a draft runs with. It is copied
// from league settings when the draft is created and stored as JSON.
type DraftSettings struct {
	Rounds           int `json:"rounds"`
	PickTimerSeconds int `json:"pick_timer_seconds"`
	ParticipantCount int `json:"participant_count"`
}

// Draft represents a draft instance. CurrentPickNumber is derived from the
// pick ledger on every read (committed picks + 1).
type Draft struct {
	ID                uuid.UUID     `json:"id"`
	LeagueID          uuid.UUID     `json:"league_id"`
	Status            DraftStatus   `json:"status"`
	CurrentPickNumber int           `json:"current_pick_number"`
	Settings          DraftSettings `json:"settings"`
	TimerDeadline     *time.Time    `json:"timer_deadline,omitempty"`
	StartTime         *time.Time    `json:"start_time,omitempty"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TotalPicks returns the number of picks that completes the draft.
func (d *Draft) TotalPicks() int {
	return order.TotalPicks(d.Settings.ParticipantCount, d.Settings.Rounds)
}

// PickTimer returns the per-pick time limit.
func (d *Draft) PickTimer() time.Duration {
	return time.Duration(d.Settings.PickTimerSeconds) * time.Second
}

// Remaining returns how long the participant on the clock has left. It is zero
// when the draft has no running deadline or the deadline already passed.
func (d *Draft) Remaining(now time.Time) time.Duration {
	if d.Status != DraftStatusInProgress || d.TimerDeadline == nil {
		return 0
	}
	if left := d.TimerDeadline.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Expired reports whether the pick on the clock has run out of time.
func (d *Draft) Expired(now time.Time) bool {
	return d.Status == DraftStatusInProgress && d.TimerDeadline != nil && !now.Before(*d.TimerDeadline)
}
