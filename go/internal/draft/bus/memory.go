package bus

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

const (
	defaultDedupeSize   = 4096
	subscriberQueueSize = 1024
)

// MemoryBus is an in-process Bus for single-node runs and tests. It dedupes
// published event ids over a bounded window and redelivers an event to a
// handler that returns an error, up to maxDeliver times.
type MemoryBus struct {
	mu         sync.Mutex
	seen       *lru.Cache
	subs       map[*memorySub]struct{}
	maxDeliver int
}

type memorySub struct {
	name   string
	filter Filter
	h      Handler
	queue  chan events.Event
	done   chan struct{}
	once   sync.Once
	bus    *MemoryBus
}

func NewMemoryBus() *MemoryBus {
	seen, err := lru.New(defaultDedupeSize)
	if err != nil {
		panic(err)
	}
	return &MemoryBus{
		seen:       seen,
		subs:       make(map[*memorySub]struct{}),
		maxDeliver: 5,
	}
}

// Publish fans ev out to every matching subscription.
func (b *MemoryBus) Publish(ctx context.Context, ev events.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.mu.Lock()
	if ok, _ := b.seen.ContainsOrAdd(ev.ID, struct{}{}); ok {
		b.mu.Unlock()
		log.Debug().Str("event_id", ev.ID.String()).Msg("duplicate event dropped")
		return nil
	}
	targets := make([]*memorySub, 0, len(b.subs))
	for s := range b.subs {
		if s.filter.Match(ev) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.queue <- ev:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe starts delivering matching events to h. Named and ephemeral
// subscriptions behave the same: the memory bus keeps no history.
func (b *MemoryBus) Subscribe(ctx context.Context, name string, filter Filter, h Handler) (Subscription, error) {
	s := &memorySub{
		name:   name,
		filter: filter,
		h:      h,
		queue:  make(chan events.Event, subscriberQueueSize),
		done:   make(chan struct{}),
		bus:    b,
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.run(ctx)
	return s, nil
}

func (s *memorySub) run(ctx context.Context) {
	defer s.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev := <-s.queue:
			s.deliver(ctx, ev)
		}
	}
}

func (s *memorySub) deliver(ctx context.Context, ev events.Event) {
	for attempt := 1; attempt <= s.bus.maxDeliver; attempt++ {
		err := s.h(ctx, ev)
		if err == nil {
			return
		}
		log.Warn().
			Err(err).
			Str("subscription", s.name).
			Str("event_id", ev.ID.String()).
			Int("attempt", attempt).
			Msg("handler failed, redelivering")
		if ctx.Err() != nil {
			return
		}
	}
	log.Error().
		Str("subscription", s.name).
		Str("event_id", ev.ID.String()).
		Msg("event dropped after max deliveries")
}

func (s *memorySub) Stop() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.done)
	})
}

// Stop ends every subscription. Publishing afterwards reaches nobody.
func (b *MemoryBus) Stop() {
	b.mu.Lock()
	subs := make([]*memorySub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Stop()
	}
}
