package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// HandleEvent re-arms the timer of the draft an event belongs to. The event
// only says which draft changed; the stored draft decides the deadline, so
// replays and out-of-order deliveries converge on the same state.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.EventTypePickCommitted, events.EventTypeDraftStatusChanged:
	default:
		log.Warn().
			Str("event_type", string(ev.Type)).
			Str("draft_id", ev.DraftID.String()).
			Msg("unknown event type - ignoring")
		return nil
	}

	log.Debug().
		Str("event_id", ev.ID.String()).
		Str("event_type", string(ev.Type)).
		Str("draft_id", ev.DraftID.String()).
		Msg("handling draft event")
	return o.refresh(ctx, ev.DraftID)
}

func (o *Orchestrator) refresh(ctx context.Context, draftID uuid.UUID) error {
	draft, err := o.drafts.GetDraft(ctx, draftID)
	if errors.Is(err, repository.ErrNotFound) {
		o.cancelTimer(draftID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get draft: %w", err)
	}

	if draft.Status == models.DraftStatusInProgress && draft.TimerDeadline != nil {
		o.schedule(ctx, draft.ID, *draft.TimerDeadline)
		return nil
	}

	o.cancelTimer(draft.ID)
	if draft.Status == models.DraftStatusCompleted {
		log.Info().Str("draft_id", draft.ID.String()).Msg("draft completed - timer released")
	}
	return nil
}
