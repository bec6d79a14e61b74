package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsProcessed   uint64    `json:"events_processed"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	BusConnected      bool      `json:"bus_connected"`
	RelayActive       bool      `json:"relay_active"`
	Errors            []string  `json:"errors"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BusStatus is satisfied by *bus.JetStream.
type BusStatus interface {
	Connected() bool
}

type HealthChecker struct {
	relay     *Relay
	store     Store
	db        Pinger
	bus       BusStatus
	counters  *Counters
	clock     clockwork.Clock
	threshold time.Duration // How long pending events may wait before unhealthy
}

// NewHealthChecker builds a checker. db, busStatus and counters may be nil.
func NewHealthChecker(relay *Relay, store Store, db Pinger, busStatus BusStatus, counters *Counters, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		relay:     relay,
		store:     store,
		db:        db,
		bus:       busStatus,
		counters:  counters,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:           true,
		DatabaseConnected: true,
		BusConnected:      true,
		Errors:            []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.relay.Stats()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status.DatabaseConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
	}

	if h.bus != nil && !h.bus.Connected() {
		status.BusConnected = false
		status.Healthy = false
		status.Errors = append(status.Errors, "event bus disconnected")
	}

	status.RelayActive = h.relay.Running()
	if !status.RelayActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay not active")
	}

	if status.DatabaseConnected {
		pending, err := h.store.CountUnsentOutbox(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > 1000 {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := h.clock.Since(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events relayed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// ServeMetrics writes the health status and counters in the Prometheus text
// exposition format.
func (h *HealthChecker) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	var b strings.Builder
	gauge := func(name, help string, v any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, v)
	}
	gauge("outbox_healthy", "Whether the outbox relay is healthy", boolToInt(status.Healthy))
	gauge("outbox_pending_events", "Current number of pending events", status.PendingEvents)
	gauge("outbox_database_connected", "Whether database is connected", boolToInt(status.DatabaseConnected))
	gauge("outbox_bus_connected", "Whether the event bus is connected", boolToInt(status.BusConnected))
	gauge("outbox_relay_active", "Whether the relay loop is running", boolToInt(status.RelayActive))
	gauge("outbox_last_event_timestamp", "Unix timestamp of last relayed event", status.LastEventTime.Unix())
	fmt.Fprintf(&b, "# HELP outbox_events_processed_total Total number of events relayed\n# TYPE outbox_events_processed_total counter\noutbox_events_processed_total %d\n", status.EventsProcessed)

	if h.counters != nil {
		snap := h.counters.Snapshot()
		b.WriteString("# HELP outbox_published_total Events published by type and outcome\n# TYPE outbox_published_total counter\n")
		writeByType(&b, "outbox_published_total", "success", snap.Published)
		writeByType(&b, "outbox_published_total", "failure", snap.Failed)
		fmt.Fprintf(&b, "# HELP outbox_publish_retries_total Publish attempts after the first\n# TYPE outbox_publish_retries_total counter\noutbox_publish_retries_total %d\n", snap.Retries)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(b.String()))
}

func writeByType(b *strings.Builder, name, outcome string, counts map[string]uint64) {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(b, "%s{event_type=%q,status=%q} %d\n", name, t, outcome, counts[t])
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
