package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// EventConsumer feeds bus events into the connection manager. Every gateway
// instance needs every event, so the subscription is unnamed unless a
// consumer name is configured.
type EventConsumer struct {
	connectionManager *ConnectionManager
	subscriber        bus.Subscriber
	name              string

	mu  sync.Mutex
	sub bus.Subscription
}

func NewEventConsumer(cm *ConnectionManager, subscriber bus.Subscriber, name string) *EventConsumer {
	return &EventConsumer{
		connectionManager: cm,
		subscriber:        subscriber,
		name:              name,
	}
}

// Start subscribes to all draft events. Delivery continues until Stop.
func (ec *EventConsumer) Start(ctx context.Context) error {
	sub, err := ec.subscriber.Subscribe(ctx, ec.name, bus.Filter{}, ec.handle)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	ec.mu.Lock()
	ec.sub = sub
	ec.mu.Unlock()

	log.Info().Str("consumer", ec.name).Msg("gateway event consumer started")
	return nil
}

func (ec *EventConsumer) handle(ctx context.Context, ev events.Event) error {
	if err := ec.connectionManager.BroadcastToDraft(ctx, ev); err != nil {
		return fmt.Errorf("failed to queue event %s: %w", ev.ID, err)
	}
	return nil
}

// Stop ends the subscription.
func (ec *EventConsumer) Stop() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.sub != nil {
		ec.sub.Stop()
		ec.sub = nil
	}
}
