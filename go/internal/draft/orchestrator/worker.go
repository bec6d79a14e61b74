package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/rs/zerolog/log"
)

// enqueue hands a draft whose timer fired to the worker pool, unless it is
// already queued or being handled.
func (o *Orchestrator) enqueue(ctx context.Context, draftID uuid.UUID) {
	o.inFlightMu.Lock()
	if o.inFlight[draftID] {
		o.inFlightMu.Unlock()
		log.Debug().Str("draft_id", draftID.String()).Str("instance", o.instanceID).Msg("skipping draft already in flight")
		return
	}
	o.inFlight[draftID] = true
	o.inFlightMu.Unlock()

	select {
	case o.workCh <- draftID:
	case <-ctx.Done():
		o.done(draftID)
	}
}

func (o *Orchestrator) done(draftID uuid.UUID) {
	o.inFlightMu.Lock()
	delete(o.inFlight, draftID)
	o.inFlightMu.Unlock()
}

// worker processes expired drafts from the work channel
func (o *Orchestrator) worker(ctx context.Context, workerID int) {
	log.Debug().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case draftID := <-o.workCh:
			if err := o.handleTimeout(ctx, draftID); err != nil {
				log.Error().
					Err(err).
					Str("draft_id", draftID.String()).
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("worker timeout handling failed")
			}
			o.done(draftID)
		}
	}
}

func (o *Orchestrator) handleTimeout(ctx context.Context, draftID uuid.UUID) error {
	p, err := o.picker.AutoPick(ctx, draftID)
	switch {
	case err == nil:
		log.Info().
			Str("draft_id", draftID.String()).
			Int("pick_number", p.PickNumber).
			Str("resource_id", p.ResourceID.String()).
			Bool("auto", p.IsAutoPick).
			Msg("pick timer expired - pick committed")

	case errors.Is(err, pick.ErrDraftExhausted):
		o.cancelTimer(draftID)
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Msg("no resource left to auto-pick - commissioner must intervene")
		return nil

	case errors.Is(err, pick.ErrTimerNotExpired), errors.Is(err, pick.ErrDraftNotActive):
		log.Debug().
			Err(err).
			Str("draft_id", draftID.String()).
			Msg("auto-pick not needed")

	default:
		o.schedule(ctx, draftID, o.clock.Now().Add(o.cfg.RetryDelay))
		return fmt.Errorf("auto-pick failed: %w", err)
	}

	return o.refresh(ctx, draftID)
}
