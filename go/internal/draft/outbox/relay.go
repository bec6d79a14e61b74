// Package outbox relays committed draft events from the outbox table to the
// event bus. It wakes on LISTEN/NOTIFY (or the memory store's notifier),
// drains unsent rows in commit order and marks them sent once the bus has
// accepted them. A fallback poll picks up anything a lost notification missed.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/rs/zerolog/log"
)

type Config struct {
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int // Max events to fetch per batch
}

func DefaultConfig() Config {
	return Config{
		NotifyChannel:    repository.DefaultNotifyChannel,
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Store is the outbox side of the draft repository.
type Store interface {
	FetchUnsentOutbox(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID, at time.Time) error
	CountUnsentOutbox(ctx context.Context) (int, error)
}

// Notifier delivers wake-ups. The payload is the inserted event id; an empty
// payload means "something may have been missed".
type Notifier interface {
	Notify() <-chan string
	Ping() error
	Close() error
}

type Relay struct {
	store     Store
	notifier  Notifier
	publisher bus.Publisher
	metrics   MetricsCollector
	clock     clockwork.Clock
	cfg       Config

	mu        sync.Mutex
	running   bool
	processed uint64
	lastSent  time.Time
}

// NewRelay creates a relay. notifier may be nil, in which case the relay
// only polls.
func NewRelay(store Store, notifier Notifier, publisher bus.Publisher, cfg Config, clock clockwork.Clock) *Relay {
	return &Relay{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		metrics:   &NoOpMetricsCollector{},
		clock:     clock,
		cfg:       cfg,
	}
}

// SetMetrics installs a metrics collector.
func (r *Relay) SetMetrics(m MetricsCollector) {
	r.metrics = m
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("outbox relay already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	pingTicker := r.clock.NewTicker(r.cfg.PingInterval)
	fallbackTicker := r.clock.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	var notify <-chan string
	if r.notifier != nil {
		notify = r.notifier.Notify()
	}

	// Rows committed while the relay was down.
	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return nil
		case _, ok := <-notify:
			if !ok {
				notify = nil
				log.Warn().Msg("outbox notifier closed, falling back to polling")
				continue
			}
			r.drain(ctx)
		case <-fallbackTicker.Chan():
			r.drain(ctx)
		case <-pingTicker.Chan():
			if r.notifier == nil {
				continue
			}
			if err := r.notifier.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Running reports whether Run is active.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stats returns the number of relayed events and when the last one was sent.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastSent
}

func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to process outbox batch")
			return
		}
		if n < r.cfg.BatchSize {
			return
		}
	}
}

// ProcessBatch publishes up to BatchSize unsent events in commit order. It
// stops at the first event that cannot be published so later events of the
// same draft never overtake it.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	start := r.clock.Now()
	unsent, err := r.store.FetchUnsentOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	if len(unsent) == 0 {
		r.metrics.RecordOutboxLag(0)
		return 0, nil
	}

	sent := 0
	for _, row := range unsent {
		if err := r.publishWithRetry(ctx, row); err != nil {
			r.metrics.RecordBatchProcessed(sent, r.clock.Since(start))
			return sent, fmt.Errorf("failed to relay event %s: %w", row.Event.ID, err)
		}
		sent++
	}

	if lag, err := r.store.CountUnsentOutbox(ctx); err == nil {
		r.metrics.RecordOutboxLag(lag)
	}
	r.metrics.RecordBatchProcessed(sent, r.clock.Since(start))

	log.Debug().Int("count", sent).Msg("relayed outbox events")
	return len(unsent), nil
}

// publishWithRetry publishes one outbox row and marks it sent, retrying the
// publish with a linear backoff.
func (r *Relay) publishWithRetry(ctx context.Context, row repository.OutboxEvent) error {
	ev := row.Event
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(delay):
			}
		}

		began := r.clock.Now()
		err := r.publisher.Publish(ctx, ev)
		r.metrics.RecordPublishAttempt(string(ev.Type), attempt+1, err == nil)
		if err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", ev.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}
		r.metrics.RecordEventProcessed(string(ev.Type), true, r.clock.Since(began))

		now := r.clock.Now().UTC()
		if err := r.store.MarkOutboxSent(ctx, ev.ID, now); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID.String()).Msg("failed to mark outbox event as sent")
			return err
		}

		r.mu.Lock()
		r.processed++
		r.lastSent = now
		r.mu.Unlock()

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", ev.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	r.metrics.RecordEventProcessed(string(ev.Type), false, 0)
	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
