package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type draftTimer struct {
	timer    clockwork.Timer
	deadline time.Time
	stop     chan struct{}
}

// schedule arms the timer of a draft for deadline, replacing any timer armed
// for a different deadline.
func (o *Orchestrator) schedule(ctx context.Context, draftID uuid.UUID, deadline time.Time) {
	o.timersMu.Lock()
	if existing, ok := o.timers[draftID]; ok {
		if existing.deadline.Equal(deadline) {
			o.timersMu.Unlock()
			log.Debug().
				Str("draft_id", draftID.String()).
				Time("deadline", deadline).
				Msg("skipping duplicate schedule")
			return
		}
		existing.cancel()
		log.Debug().Str("draft_id", draftID.String()).Msg("replaced existing timer")
	}

	wait := deadline.Sub(o.clock.Now())
	if wait <= 0 {
		delete(o.timers, draftID)
		o.timersMu.Unlock()
		log.Debug().
			Str("draft_id", draftID.String()).
			Time("deadline", deadline).
			Msg("deadline already passed")
		go o.enqueue(ctx, draftID)
		return
	}
	t := &draftTimer{
		timer:    o.clock.NewTimer(wait),
		deadline: deadline,
		stop:     make(chan struct{}),
	}
	o.timers[draftID] = t
	o.timersMu.Unlock()

	go o.await(ctx, draftID, t)

	log.Debug().
		Str("draft_id", draftID.String()).
		Time("deadline", deadline).
		Dur("duration", wait).
		Msg("scheduled pick timer")
}

func (o *Orchestrator) await(ctx context.Context, draftID uuid.UUID, t *draftTimer) {
	select {
	case <-t.timer.Chan():
		o.removeTimer(draftID, t)
		log.Debug().Str("draft_id", draftID.String()).Msg("pick timer fired")
		o.enqueue(ctx, draftID)
	case <-t.stop:
	case <-ctx.Done():
		stopAndDrainTimer(t.timer)
	}
}

func (t *draftTimer) cancel() {
	stopAndDrainTimer(t.timer)
	close(t.stop)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// cancelTimer cancels and removes the timer of a draft
func (o *Orchestrator) cancelTimer(draftID uuid.UUID) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()

	if t, ok := o.timers[draftID]; ok {
		t.cancel()
		delete(o.timers, draftID)
		log.Debug().Str("draft_id", draftID.String()).Msg("cancelled pick timer")
	}
}

// removeTimer forgets t once it has fired, unless it was already replaced.
func (o *Orchestrator) removeTimer(draftID uuid.UUID, t *draftTimer) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if o.timers[draftID] == t {
		delete(o.timers, draftID)
	}
}

func (o *Orchestrator) cancelAll() {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	for draftID, t := range o.timers {
		t.cancel()
		delete(o.timers, draftID)
	}
}

// Deadline returns the deadline a draft's timer is armed for.
func (o *Orchestrator) Deadline(draftID uuid.UUID) (time.Time, bool) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	t, ok := o.timers[draftID]
	if !ok {
		return time.Time{}, false
	}
	return t.deadline, true
}
