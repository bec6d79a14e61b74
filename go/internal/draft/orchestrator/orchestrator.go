// Package orchestrator is the server-side timer manager. It keeps one timer
// per in-progress draft, armed from the stored deadline, and auto-picks for
// the slot on the clock when a timer fires. Picks go through the same
// validation and uniqueness path as manual picks, so a late or duplicate
// fire is harmless.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DraftReader is the read side of the draft repository.
type DraftReader interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListActiveDeadlines(ctx context.Context) ([]repository.ActiveDeadline, error)
}

// AutoPicker commits an auto-pick for the slot on the clock.
type AutoPicker interface {
	AutoPick(ctx context.Context, draftID uuid.UUID) (*models.Pick, error)
}

type Config struct {
	Workers      int
	ConsumerName string
	RetryDelay   time.Duration // wait before retrying a failed auto-pick
}

func DefaultConfig() Config {
	return Config{
		Workers:      10,
		ConsumerName: "draft-orchestrator",
		RetryDelay:   5 * time.Second,
	}
}

type Orchestrator struct {
	drafts     DraftReader
	picker     AutoPicker
	events     bus.Subscriber
	clock      clockwork.Clock
	cfg        Config
	instanceID string // short ID for logging

	workCh chan uuid.UUID

	timersMu sync.Mutex
	timers   map[uuid.UUID]*draftTimer

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func New(drafts DraftReader, picker AutoPicker, events bus.Subscriber, clock clockwork.Clock, cfg Config) *Orchestrator {
	return &Orchestrator{
		drafts:     drafts,
		picker:     picker,
		events:     events,
		clock:      clock,
		cfg:        cfg,
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan uuid.UUID, cfg.Workers*2),
		timers:     make(map[uuid.UUID]*draftTimer),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// Run subscribes to draft events, re-arms timers for every in-progress draft
// and runs the worker pool until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.cfg.Workers).
		Msg("orchestrator started")

	sub, err := o.events.Subscribe(ctx, o.cfg.ConsumerName, bus.Filter{}, o.HandleEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to draft events: %w", err)
	}
	defer sub.Stop()

	if err := o.Recover(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		g.Go(func() error {
			o.worker(gctx, i)
			return nil
		})
	}
	err = g.Wait()

	o.cancelAll()
	log.Info().Str("instance", o.instanceID).Msg("orchestrator stopped")
	return err
}

// Recover arms a timer for every in-progress draft. Deadlines that passed
// while nothing was running fire immediately.
func (o *Orchestrator) Recover(ctx context.Context) error {
	active, err := o.drafts.ListActiveDeadlines(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active deadlines: %w", err)
	}
	for _, a := range active {
		o.schedule(ctx, a.DraftID, a.Deadline)
	}
	log.Info().
		Str("instance", o.instanceID).
		Int("drafts", len(active)).
		Msg("recovered draft timers")
	return nil
}
