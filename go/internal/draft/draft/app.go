package draft

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/order"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidTransition is returned when the stored status does not allow
	// the requested transition.
	ErrInvalidTransition = errors.New("invalid draft status transition")
	// ErrSlotsIncomplete is returned by Start when not every participant holds
	// a distinct slot.
	ErrSlotsIncomplete = repository.ErrSlotsIncomplete
	// ErrInvalidDraft is returned for requests that fail validation.
	ErrInvalidDraft = errors.New("invalid draft request")
	// ErrNoCurrentDrafter is returned once the draft has completed.
	ErrNoCurrentDrafter = errors.New("draft has no current drafter")
)

// DraftRepository defines what the draft app layer needs from storage
type DraftRepository interface {
	CreateDraft(ctx context.Context, req repository.CreateDraftParams) (*models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	TransitionDraft(ctx context.Context, req repository.TransitionParams) (*models.Draft, error)
	ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error)
	AssignDraftSlots(ctx context.Context, draftID uuid.UUID, slots map[uuid.UUID]int, at time.Time) error
	ListResources(ctx context.Context, draftID uuid.UUID) ([]models.Resource, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error)
}

// App is the draft state machine: pre_draft -> in_progress <-> paused ->
// completed. Completion is written by the pick committer; everything else
// goes through here as a compare-and-set on the stored status.
type App struct {
	repo     DraftRepository
	clock    clockwork.Clock
	validate *validator.Validate
}

// NewApp creates a new draft App
func NewApp(repo DraftRepository, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		clock:    clock,
		validate: validator.New(),
	}
}

// CreateDraft creates a draft in pre_draft for a league
func (a *App) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	draft, err := a.repo.CreateDraft(ctx, repository.CreateDraftParams{
		ID:       uuid.New(),
		LeagueID: req.LeagueID,
		Settings: models.DraftSettings{
			Rounds:           req.Rounds,
			PickTimerSeconds: req.PickTimerSeconds,
			ParticipantCount: req.ParticipantCount,
		},
		CreatedAt: a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Info().
		Str("draft_id", draft.ID.String()).
		Str("league_id", req.LeagueID.String()).
		Int("participants", req.ParticipantCount).
		Int("rounds", req.Rounds).
		Msg("created draft")
	return draft, nil
}

// AssignDraftSlots replaces the draft order. Only allowed in pre_draft;
// participants left out of the request become unassigned.
func (a *App) AssignDraftSlots(ctx context.Context, req AssignDraftSlotsRequest) ([]models.Participant, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	draft, err := a.repo.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if draft.Status != models.DraftStatusPreDraft {
		return nil, fmt.Errorf("%w: draft order is frozen once the draft is %s", ErrInvalidTransition, draft.Status)
	}

	slots := make(map[uuid.UUID]int, len(req.Slots))
	taken := make(map[int]bool, len(req.Slots))
	for _, s := range req.Slots {
		if s.DraftSlot > draft.Settings.ParticipantCount {
			return nil, fmt.Errorf("%w: slot %d exceeds participant count %d", ErrInvalidDraft, s.DraftSlot, draft.Settings.ParticipantCount)
		}
		if taken[s.DraftSlot] {
			return nil, fmt.Errorf("%w: slot %d assigned twice", ErrInvalidDraft, s.DraftSlot)
		}
		if _, dup := slots[s.ParticipantID]; dup {
			return nil, fmt.Errorf("%w: participant %s assigned twice", ErrInvalidDraft, s.ParticipantID)
		}
		taken[s.DraftSlot] = true
		slots[s.ParticipantID] = s.DraftSlot
	}

	err = a.repo.AssignDraftSlots(ctx, draft.ID, slots, a.clock.Now().UTC())
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: draft left pre_draft: %v", ErrInvalidTransition, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign draft slots: %w", err)
	}

	participants, err := a.repo.ListParticipants(ctx, draft.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	log.Info().Str("draft_id", draft.ID.String()).Int("assigned", len(slots)).Msg("assigned draft slots")
	return participants, nil
}

// Start moves a draft from pre_draft to in_progress and starts the first
// pick's timer. Every participant must hold a distinct slot 1..N.
func (a *App) Start(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	now := a.clock.Now().UTC()
	deadline := now.Add(draft.PickTimer())
	return a.transition(ctx, draft, models.DraftStatusPreDraft, models.DraftStatusInProgress, func(p *repository.TransitionParams) {
		p.TimerDeadline = &deadline
		p.StartTime = &now
		p.RequireSlots = draft.Settings.ParticipantCount
	})
}

// Pause stops the clock. The time already elapsed on the current pick is
// discarded.
func (a *App) Pause(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return a.transition(ctx, draft, models.DraftStatusInProgress, models.DraftStatusPaused, nil)
}

// Resume restarts the full pick timer for the pick that was on the clock.
func (a *App) Resume(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	deadline := a.clock.Now().UTC().Add(draft.PickTimer())
	return a.transition(ctx, draft, models.DraftStatusPaused, models.DraftStatusInProgress, func(p *repository.TransitionParams) {
		p.TimerDeadline = &deadline
	})
}

func (a *App) transition(ctx context.Context, draft *models.Draft, from, to models.DraftStatus, with func(*repository.TransitionParams)) (*models.Draft, error) {
	if draft.Status != from {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, draft.Status, to)
	}

	params := repository.TransitionParams{
		DraftID: draft.ID,
		From:    from,
		To:      to,
		At:      a.clock.Now().UTC(),
	}
	if with != nil {
		with(&params)
	}

	ev, err := events.NewDraftStatusChanged(draft.ID, from, to, params.TimerDeadline, params.At)
	if err != nil {
		return nil, err
	}
	params.Event = ev

	updated, err := a.repo.TransitionDraft(ctx, params)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: draft is no longer %s", ErrInvalidTransition, from)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to move draft to %s: %w", to, err)
	}

	log.Info().
		Str("draft_id", draft.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("pick_number", updated.CurrentPickNumber).
		Msg("draft status changed")
	return updated, nil
}

// GetDraft retrieves a draft by ID
func (a *App) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

// CurrentDrafter returns the participant on the clock.
func (a *App) CurrentDrafter(ctx context.Context, id uuid.UUID) (*Turn, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	participants, err := a.repo.ListParticipants(ctx, draft.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return currentTurn(draft, participants)
}

// GetDraftState assembles the full snapshot clients resync from.
func (a *App) GetDraftState(ctx context.Context, id uuid.UUID) (*models.DraftState, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	participants, err := a.repo.ListParticipants(ctx, draft.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	resources, err := a.repo.ListResources(ctx, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	picks, err := a.repo.ListPicks(ctx, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}

	now := a.clock.Now().UTC()
	state := &models.DraftState{
		Draft:            *draft,
		Participants:     nonNil(participants),
		Resources:        nonNil(resources),
		Picks:            nonNil(picks),
		SecondsRemaining: int(math.Ceil(draft.Remaining(now).Seconds())),
		ServerTime:       now,
	}
	if turn, err := currentTurn(draft, participants); err == nil {
		state.CurrentDrafter = &turn.Participant
	}
	return state, nil
}

func currentTurn(draft *models.Draft, participants []models.Participant) (*Turn, error) {
	if draft.Status == models.DraftStatusCompleted || draft.CurrentPickNumber > draft.TotalPicks() {
		return nil, ErrNoCurrentDrafter
	}
	n := draft.Settings.ParticipantCount
	slot := order.Drafter(draft.CurrentPickNumber, n)
	for _, p := range participants {
		if p.DraftSlot == slot {
			return &Turn{
				Participant: p,
				PickNumber:  draft.CurrentPickNumber,
				Round:       order.Round(draft.CurrentPickNumber, n),
				PickInRound: order.PickInRound(draft.CurrentPickNumber, n),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: slot %d is unassigned", ErrNoCurrentDrafter, slot)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
