package outbox

import (
	"sync"
	"time"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEventProcessed(eventType string, success bool, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordBatchProcessed(count int, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordOutboxLag(lag int) {}
func (n *NoOpMetricsCollector) RecordPublishAttempt(eventType string, attempt int, success bool) {}

// Counters is an in-process MetricsCollector read by the health exporter.
type Counters struct {
	mu             sync.Mutex
	published      map[string]uint64
	failed         map[string]uint64
	retries        uint64
	batches        uint64
	lag            int
	lastBatchTotal time.Duration
}

func NewCounters() *Counters {
	return &Counters{
		published: make(map[string]uint64),
		failed:    make(map[string]uint64),
	}
}

func (c *Counters) RecordEventProcessed(eventType string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.published[eventType]++
	} else {
		c.failed[eventType]++
	}
}

func (c *Counters) RecordBatchProcessed(_ int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++
	c.lastBatchTotal = duration
}

func (c *Counters) RecordOutboxLag(lag int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lag = lag
}

func (c *Counters) RecordPublishAttempt(_ string, attempt int, _ bool) {
	if attempt <= 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}

// Snapshot is a copy of the counters at a point in time.
type Snapshot struct {
	Published map[string]uint64
	Failed    map[string]uint64
	Retries   uint64
	Batches   uint64
	Lag       int
	LastBatch time.Duration
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Published: make(map[string]uint64, len(c.published)),
		Failed:    make(map[string]uint64, len(c.failed)),
		Retries:   c.retries,
		Batches:   c.batches,
		Lag:       c.lag,
		LastBatch: c.lastBatchTotal,
	}
	for k, v := range c.published {
		s.Published[k] = v
	}
	for k, v := range c.failed {
		s.Failed[k] = v
	}
	return s
}
