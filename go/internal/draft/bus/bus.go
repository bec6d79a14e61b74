// Package bus carries draft events from the outbox relay to the orchestrator,
// the gateway and any other consumer. Delivery is at-least-once; consumers
// dedupe on the event id.
package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
)

// Publisher publishes a draft event. Publishing the same event id twice
// within the dedupe window is a no-op.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Handler processes one delivered event. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, ev events.Event) error

// Subscription is a running subscription.
type Subscription interface {
	Stop()
}

// Subscriber delivers events matching a filter to a handler, in publish
// order, one at a time. An empty name is an ephemeral subscription that only
// sees events published after it started.
type Subscriber interface {
	Subscribe(ctx context.Context, name string, filter Filter, h Handler) (Subscription, error)
}

// Bus is both ends of the event stream.
type Bus interface {
	Publisher
	Subscriber
}

// Filter narrows a subscription. Zero values match everything.
type Filter struct {
	DraftID uuid.UUID
	Types   []events.EventType
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev events.Event) bool {
	if f.DraftID != uuid.Nil && f.DraftID != ev.DraftID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == ev.Type {
			return true
		}
	}
	return false
}

// Subject returns the subject an event is published on:
// <prefix>.<draft_id>.<event_type>.
func Subject(prefix string, ev events.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, ev.DraftID, ev.Type)
}

// subjects returns the subject filters that select f under prefix.
func (f Filter) subjects(prefix string) []string {
	draft := "*"
	if f.DraftID != uuid.Nil {
		draft = f.DraftID.String()
	}
	if len(f.Types) == 0 {
		return []string{strings.Join([]string{prefix, draft, ">"}, ".")}
	}
	out := make([]string, len(f.Types))
	for i, t := range f.Types {
		out[i] = strings.Join([]string{prefix, draft, string(t)}, ".")
	}
	return out
}
