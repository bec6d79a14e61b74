// Package draftapi defines the RPC surface of the draft engine: message
// types, procedure names, handler constructors and clients for DraftService
// and PickService. Messages travel as JSON.
package draftapi

import (
	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// RejectionHeader carries the rejection reason of a refused pick.
const RejectionHeader = "Rejection-Reason"

type CreateDraftRequest struct {
	LeagueID         uuid.UUID `json:"league_id"`
	ParticipantCount int       `json:"participant_count"`
	Rounds           int       `json:"rounds"`
	PickTimerSeconds int       `json:"pick_timer_seconds"`
}

type CreateDraftResponse struct {
	Draft models.Draft `json:"draft"`
}

type SlotAssignment struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	DraftSlot     int       `json:"draft_slot"`
}

type AssignDraftSlotsRequest struct {
	DraftID uuid.UUID        `json:"draft_id"`
	Slots   []SlotAssignment `json:"slots"`
}

type AssignDraftSlotsResponse struct {
	Participants []models.Participant `json:"participants"`
}

type DraftRequest struct {
	DraftID uuid.UUID `json:"draft_id"`
}

type DraftResponse struct {
	Draft models.Draft `json:"draft"`
}

type StartDraftRequest = DraftRequest
type StartDraftResponse = DraftResponse
type PauseDraftRequest = DraftRequest
type PauseDraftResponse = DraftResponse
type ResumeDraftRequest = DraftRequest
type ResumeDraftResponse = DraftResponse
type GetDraftRequest = DraftRequest
type GetDraftResponse = DraftResponse
type CurrentDrafterRequest = DraftRequest
type GetDraftStateRequest = DraftRequest

type CurrentDrafterResponse struct {
	Participant models.Participant `json:"participant"`
	PickNumber  int                `json:"pick_number"`
	Round       int                `json:"round"`
	PickInRound int                `json:"pick_in_round"`
}

type GetDraftStateResponse struct {
	State models.DraftState `json:"state"`
}

type SubmitPickRequest struct {
	DraftID       uuid.UUID `json:"draft_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	ResourceID    uuid.UUID `json:"resource_id"`
}

type SubmitPickResponse struct {
	Pick models.Pick `json:"pick"`
}

type TriggerAutoPickRequest = DraftRequest

type TriggerAutoPickResponse struct {
	Pick *models.Pick `json:"pick,omitempty"`
}

type ListPicksRequest = DraftRequest

type ListPicksResponse struct {
	Picks []models.Pick `json:"picks"`
}
