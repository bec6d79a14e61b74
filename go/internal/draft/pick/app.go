package pick

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/order"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	seatCacheSize           = 1024
	defaultAutoPickAttempts = 5
)

// PickRepository defines what the pick app layer needs from storage
type PickRepository interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error)
	CommitPick(ctx context.Context, req repository.CommitPickParams) (*models.Pick, error)
}

// ResourcePool defines what the pick app layer needs from the resource pool
type ResourcePool interface {
	IsAvailable(ctx context.Context, draftID, resourceID uuid.UUID) (bool, error)
	CheapestAvailable(ctx context.Context, draftID uuid.UUID) (*models.Resource, error)
}

// App is the pick committer. It is the only code path that creates picks.
type App struct {
	repo     PickRepository
	pool     ResourcePool
	resolver *Resolver
	clock    clockwork.Clock

	// seats caches participant lists of drafts that left pre_draft, when
	// slot assignments can no longer change.
	seats            *lru.Cache
	autoPickAttempts int
}

// NewApp creates a new pick App
func NewApp(repo PickRepository, pool ResourcePool, clock clockwork.Clock) *App {
	seats, _ := lru.New(seatCacheSize)
	return &App{
		repo:             repo,
		pool:             pool,
		resolver:         NewResolver(pool),
		clock:            clock,
		seats:            seats,
		autoPickAttempts: defaultAutoPickAttempts,
	}
}

// SubmitPick validates and commits a manual pick. Preconditions are checked
// in order (draft status, turn, resource availability); the insert itself
// settles races, and the loser gets ErrLostRace.
func (a *App) SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error) {
	if err := validateSubmitPickRequest(req); err != nil {
		return nil, err
	}

	draft, err := a.repo.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if err := checkActive(draft); err != nil {
		return nil, err
	}

	seats, err := a.seatsFor(ctx, draft)
	if err != nil {
		return nil, err
	}
	seat, ok := findParticipant(seats, req.ParticipantID)
	if !ok {
		return nil, fmt.Errorf("%w: participant %s is not in this draft", ErrInvalidPick, req.ParticipantID)
	}

	onClock := order.Drafter(draft.CurrentPickNumber, draft.Settings.ParticipantCount)
	if seat.DraftSlot != onClock {
		return nil, &Rejection{
			Reason:     ReasonNotYourTurn,
			DraftID:    draft.ID,
			PickNumber: draft.CurrentPickNumber,
			Detail:     fmt.Sprintf("slot %d is on the clock, requester holds slot %d", onClock, seat.DraftSlot),
		}
	}

	available, err := a.pool.IsAvailable(ctx, draft.ID, req.ResourceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: resource %s is not in this draft's pool", ErrInvalidPick, req.ResourceID)
	}
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, &Rejection{
			Reason:     ReasonResourceAlreadyClaimed,
			DraftID:    draft.ID,
			PickNumber: draft.CurrentPickNumber,
			Detail:     fmt.Sprintf("resource %s is already claimed", req.ResourceID),
		}
	}

	return a.commit(ctx, draft, seat, req.ResourceID, false)
}

// AutoPick claims the cheapest resource for whichever slot is on the clock,
// bound to a member or not. It only fires once the deadline has passed. A
// lost race is resolved here: if another pick took the number the winning
// pick is returned, otherwise the next resource is tried.
func (a *App) AutoPick(ctx context.Context, draftID uuid.UUID) (*models.Pick, error) {
	var lastErr error
	for attempt := 1; attempt <= a.autoPickAttempts; attempt++ {
		draft, err := a.repo.GetDraft(ctx, draftID)
		if err != nil {
			return nil, fmt.Errorf("failed to load draft: %w", err)
		}
		if err := checkActive(draft); err != nil {
			return nil, err
		}
		if !draft.Expired(a.clock.Now()) {
			return nil, &Rejection{
				Reason:     ReasonTimerNotExpired,
				DraftID:    draft.ID,
				PickNumber: draft.CurrentPickNumber,
				Detail:     fmt.Sprintf("%s left on the clock", draft.Remaining(a.clock.Now())),
			}
		}

		seats, err := a.seatsFor(ctx, draft)
		if err != nil {
			return nil, err
		}
		slot := order.Drafter(draft.CurrentPickNumber, draft.Settings.ParticipantCount)
		seat, ok := findSlot(seats, slot)
		if !ok {
			return nil, fmt.Errorf("%w: no participant holds slot %d", repository.ErrInvariantViolation, slot)
		}

		resourceID, err := a.resolver.Resolve(ctx, draft.ID)
		if errors.Is(err, ErrDraftExhausted) {
			log.Error().
				Str("draft_id", draft.ID.String()).
				Int("pick_number", draft.CurrentPickNumber).
				Msg("auto-pick found no unclaimed resources, commissioner intervention required")
			return nil, err
		}
		if err != nil {
			return nil, err
		}

		pick, err := a.commit(ctx, draft, seat, resourceID, true)
		if err == nil {
			return pick, nil
		}
		if !errors.Is(err, ErrLostRace) {
			return nil, err
		}
		lastErr = err

		winner, moved, err := a.pickAt(ctx, draft.ID, draft.CurrentPickNumber)
		if err != nil {
			return nil, err
		}
		if moved {
			log.Debug().
				Str("draft_id", draft.ID.String()).
				Int("pick_number", winner.PickNumber).
				Msg("auto-pick lost to a committed pick")
			return winner, nil
		}

		log.Info().
			Str("draft_id", draft.ID.String()).
			Int("attempt", attempt).
			Msg("auto-pick lost race on resource, resolving again")
	}
	return nil, lastErr
}

// ListPicks returns the draft's committed picks in order
func (a *App) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	picks, err := a.repo.ListPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// Participant returns a seat of the draft's league.
func (a *App) Participant(ctx context.Context, draftID, participantID uuid.UUID) (*models.Participant, error) {
	draft, err := a.repo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	seats, err := a.seatsFor(ctx, draft)
	if err != nil {
		return nil, err
	}
	seat, ok := findParticipant(seats, participantID)
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", participantID, repository.ErrNotFound)
	}
	return &seat, nil
}

// commit writes the pick, the draft's next deadline (or its completion) and
// the outbox events in one transaction.
func (a *App) commit(ctx context.Context, draft *models.Draft, seat models.Participant, resourceID uuid.UUID, auto bool) (*models.Pick, error) {
	now := a.clock.Now().UTC()
	pickNumber := draft.CurrentPickNumber
	n := draft.Settings.ParticipantCount

	pick := models.Pick{
		ID:            uuid.New(),
		DraftID:       draft.ID,
		PickNumber:    pickNumber,
		Round:         order.Round(pickNumber, n),
		ParticipantID: seat.ID,
		ResourceID:    resourceID,
		IsAutoPick:    auto,
		CommittedAt:   now,
	}

	params := repository.CommitPickParams{Pick: pick, NextStatus: models.DraftStatusInProgress}
	if pickNumber >= draft.TotalPicks() {
		params.NextStatus = models.DraftStatusCompleted
		params.EndTime = &now
	} else {
		deadline := now.Add(draft.PickTimer())
		params.TimerDeadline = &deadline
	}

	pickEvent, err := events.NewPickCommitted(pick, params.TimerDeadline)
	if err != nil {
		return nil, err
	}
	params.Events = append(params.Events, pickEvent)
	if params.NextStatus == models.DraftStatusCompleted {
		statusEvent, err := events.NewDraftStatusChanged(draft.ID, models.DraftStatusInProgress, models.DraftStatusCompleted, nil, now)
		if err != nil {
			return nil, err
		}
		params.Events = append(params.Events, statusEvent)
	}

	committed, err := a.repo.CommitPick(ctx, params)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUniqueViolation):
		return nil, &Rejection{Reason: ReasonLostRace, DraftID: draft.ID, PickNumber: pickNumber, Err: err}
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, &Rejection{Reason: ReasonDraftNotActive, DraftID: draft.ID, PickNumber: pickNumber, Err: err}
	case errors.Is(err, repository.ErrInvariantViolation):
		log.Error().Err(err).
			Str("draft_id", draft.ID.String()).
			Int("pick_number", pickNumber).
			Msg("pick ledger invariant violated")
		return nil, err
	default:
		return nil, err
	}

	log.Info().
		Str("draft_id", draft.ID.String()).
		Int("pick_number", committed.PickNumber).
		Str("participant_id", seat.ID.String()).
		Str("resource_id", resourceID.String()).
		Bool("auto_pick", auto).
		Str("next_status", string(params.NextStatus)).
		Msg("pick committed")

	return committed, nil
}

// pickAt reports whether the ledger already holds pickNumber, and returns
// that pick when it does.
func (a *App) pickAt(ctx context.Context, draftID uuid.UUID, pickNumber int) (*models.Pick, bool, error) {
	picks, err := a.repo.ListPicks(ctx, draftID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-read picks: %w", err)
	}
	if len(picks) < pickNumber {
		return nil, false, nil
	}
	p := picks[pickNumber-1]
	return &p, true, nil
}

func (a *App) seatsFor(ctx context.Context, draft *models.Draft) ([]models.Participant, error) {
	if cached, ok := a.seats.Get(draft.ID); ok {
		return cached.([]models.Participant), nil
	}

	seats, err := a.repo.ListParticipants(ctx, draft.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	if draft.Status != models.DraftStatusPreDraft {
		a.seats.Add(draft.ID, seats)
	}
	return seats, nil
}

func checkActive(draft *models.Draft) error {
	if draft.Status == models.DraftStatusInProgress && draft.CurrentPickNumber <= draft.TotalPicks() {
		return nil
	}
	return &Rejection{
		Reason:     ReasonDraftNotActive,
		DraftID:    draft.ID,
		PickNumber: draft.CurrentPickNumber,
		Detail:     fmt.Sprintf("draft is %s", draft.Status),
	}
}

func findParticipant(seats []models.Participant, id uuid.UUID) (models.Participant, bool) {
	for _, p := range seats {
		if p.ID == id {
			return p, true
		}
	}
	return models.Participant{}, false
}

func findSlot(seats []models.Participant, slot int) (models.Participant, bool) {
	for _, p := range seats {
		if p.DraftSlot == slot {
			return p, true
		}
	}
	return models.Participant{}, false
}

func validateSubmitPickRequest(req SubmitPickRequest) error {
	if req.DraftID == uuid.Nil {
		return fmt.Errorf("%w: draft_id is required", ErrInvalidPick)
	}
	if req.ParticipantID == uuid.Nil {
		return fmt.Errorf("%w: participant_id is required", ErrInvalidPick)
	}
	if req.ResourceID == uuid.Nil {
		return fmt.Errorf("%w: resource_id is required", ErrInvalidPick)
	}
	return nil
}
