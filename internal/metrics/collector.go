// Package metrics aggregates per-event-type counters consumed by the
// health check and the diagnostic report.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// EventMetrics captures the counters tracked for one event type.
type EventMetrics struct {
	Type      string    `json:"type"`
	Count     uint64    `json:"count"`
	Errors    uint64    `json:"errors"`
	LastSeen  time.Time `json:"lastSeen,omitempty"`
	LastError time.Time `json:"lastError,omitempty"`
}

// Totals aggregates counters across all event types.
type Totals struct {
	Count  uint64 `json:"count"`
	Errors uint64 `json:"errors"`
}

// Snapshot is the serializable view of the current counters.
type Snapshot struct {
	Started time.Time      `json:"started"`
	Totals  Totals         `json:"totals"`
	Events  []EventMetrics `json:"events,omitempty"`
}

// Collector counts processed events per type.
type Collector struct {
	mu      sync.RWMutex
	started time.Time
	events  map[string]*EventMetrics
}

func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		events:  make(map[string]*EventMetrics),
	}
}

// RecordEvent increments the counter for an event type, tracking the error
// counter separately when handling failed.
func (c *Collector) RecordEvent(eventType string, failed bool) {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.events[eventType]
	if !ok {
		entry = &EventMetrics{Type: eventType}
		c.events[eventType] = entry
	}
	entry.Count++
	entry.LastSeen = now
	if failed {
		entry.Errors++
		entry.LastError = now
	}
}

// LastActivity returns the most recent event timestamp across all types.
func (c *Collector) LastActivity() time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var last time.Time
	for _, entry := range c.events {
		if entry.LastSeen.After(last) {
			last = entry.LastSeen
		}
	}
	return last
}

// Started returns when collection began (daemon start).
func (c *Collector) Started() time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Snapshot returns the current counters sorted by event type.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Started: c.started}
	if len(c.events) == 0 {
		return snap
	}
	snap.Events = make([]EventMetrics, 0, len(c.events))
	for _, entry := range c.events {
		clone := *entry
		snap.Events = append(snap.Events, clone)
		snap.Totals.Count += clone.Count
		snap.Totals.Errors += clone.Errors
	}
	sort.Slice(snap.Events, func(i, j int) bool {
		return snap.Events[i].Type < snap.Events[j].Type
	})
	return snap
}
