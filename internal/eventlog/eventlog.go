// Package eventlog keeps the daemon's append-only diagnostic trace in a
// fixed-capacity ring buffer. Entries are never mutated after append; the
// ring policy is the only truncation.
package eventlog

import (
	"sync"
	"time"
)

// Source identifies which surface produced an entry.
type Source string

const (
	SourceWindowManager Source = "window-manager"
	SourceIPC           Source = "ipc"
	SourceDaemon        Source = "daemon"
)

const defaultCapacity = 512

// Entry is one audit record. Fields carries the sparse type-specific
// payload (window id, confidence, diff kind, ...).
type Entry struct {
	ID        uint64         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    Source         `json:"source"`
	ElapsedMs float64        `json:"elapsedMs"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Log is a concurrency-safe ring buffer of entries.
type Log struct {
	mu       sync.Mutex
	buf      []Entry
	start    int
	count    int
	capacity int
	nextID   uint64
}

// NewLog returns a log with the given capacity, defaulting when non-positive.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{
		buf:      make([]Entry, capacity),
		capacity: capacity,
		nextID:   1,
	}
}

// Append assigns the next monotonic id, stamps the entry if it carries no
// timestamp, and stores it. The assigned id is returned.
func (l *Log) Append(entry Entry) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.ID = l.nextID
	l.nextID++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if l.count < l.capacity {
		idx := (l.start + l.count) % l.capacity
		l.buf[idx] = entry
		l.count++
	} else {
		l.buf[l.start] = entry
		l.start = (l.start + 1) % l.capacity
	}
	return entry.ID
}

// Recent returns up to limit entries from the tail, oldest first. An empty
// typeFilter matches everything.
func (l *Log) Recent(limit int, typeFilter string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > l.count {
		limit = l.count
	}
	matched := make([]Entry, 0, limit)
	for i := 0; i < l.count; i++ {
		idx := (l.start + i) % l.capacity
		entry := l.buf[idx]
		if typeFilter != "" && entry.Type != typeFilter {
			continue
		}
		matched = append(matched, entry)
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Len reports how many entries the log currently holds.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
