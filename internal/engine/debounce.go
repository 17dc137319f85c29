package engine

import (
	"fmt"
	"time"
)

const (
	debounceInterval = 100 * time.Millisecond
	debouncePrune    = 10 * time.Second
	debounceCapacity = 256
)

// debouncer enforces a minimum interval per (action, window) pair for the
// user-facing window actions. The table has a fixed capacity; stale entries
// are pruned on every allow check so memory stays bounded under sustained
// rapid input.
type debouncer struct {
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func newDebouncer(interval time.Duration) *debouncer {
	if interval <= 0 {
		interval = debounceInterval
	}
	return &debouncer{
		interval: interval,
		last:     make(map[string]time.Time, debounceCapacity),
		now:      time.Now,
	}
}

// allow reports whether the action may run now and records the attempt when
// it may. Callers hold the engine mutex.
func (d *debouncer) allow(action string, windowID int64) bool {
	now := d.now()
	d.prune(now)
	key := fmt.Sprintf("%s:%d", action, windowID)
	if last, ok := d.last[key]; ok && now.Sub(last) < d.interval {
		return false
	}
	if len(d.last) >= debounceCapacity {
		// Table full of recent entries; drop the oldest to admit this one.
		oldestKey := ""
		var oldest time.Time
		for k, ts := range d.last {
			if oldestKey == "" || ts.Before(oldest) {
				oldestKey, oldest = k, ts
			}
		}
		delete(d.last, oldestKey)
	}
	d.last[key] = now
	return true
}

func (d *debouncer) prune(now time.Time) {
	cutoff := now.Add(-debouncePrune)
	for key, ts := range d.last {
		if ts.Before(cutoff) {
			delete(d.last, key)
		}
	}
}
