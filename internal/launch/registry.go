// Package launch correlates launch notifications with the windows they
// eventually open. Every pending launch lives in a time window; matching is
// driven by a bounded confidence score over independent signals.
package launch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout is how long a launch stays matchable.
	DefaultTimeout = 5 * time.Second
	// MatchThreshold is the minimum confidence FindMatch accepts.
	MatchThreshold = 0.6
)

// Confidence buckets a correlation score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Level buckets a score: HIGH >= 0.8, MEDIUM >= 0.6, LOW below.
func Level(score float64) Confidence {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= MatchThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PendingLaunch is an intent-to-open-window record.
type PendingLaunch struct {
	ID            string    `json:"id"`
	App           string    `json:"app"`
	Project       string    `json:"project,omitempty"`
	Workspace     int       `json:"workspace,omitempty"`
	LauncherPID   int       `json:"launcherPid,omitempty"`
	ExpectedClass string    `json:"expectedClass"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// WindowInfo is the window-creation side of one match attempt.
type WindowInfo struct {
	ID        int64
	Class     string
	PID       int
	Workspace int
	Timestamp time.Time
}

// Result binds a launch to a matched window with its score and the named
// signals that produced it.
type Result struct {
	Launch     PendingLaunch     `json:"launch"`
	WindowID   int64             `json:"windowId"`
	Confidence float64           `json:"confidence"`
	Level      Confidence        `json:"level"`
	Signals    map[string]string `json:"signals"`
}

// Stats reports correlation effectiveness for observability.
type Stats struct {
	Notifications uint64  `json:"notifications"`
	Matched       uint64  `json:"matched"`
	MatchRate     float64 `json:"matchRatePercent"`
	Pending       int     `json:"pending"`
}

// Registry is the time-windowed store of pending launches. Expiry is lazy:
// every FindMatch call sweeps entries older than the timeout, so no separate
// timer is needed.
type Registry struct {
	mu      sync.Mutex
	pending []PendingLaunch
	timeout time.Duration
	now     func() time.Time

	notifications uint64
	matched       uint64
}

// NewRegistry returns a registry with the given timeout, defaulting when
// non-positive.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{timeout: timeout, now: time.Now}
}

// Register admits a launch notification. Missing id and timestamp are
// filled in; the stored record is returned.
func (r *Registry) Register(launch PendingLaunch) PendingLaunch {
	r.mu.Lock()
	defer r.mu.Unlock()
	if launch.ID == "" {
		launch.ID = uuid.NewString()
	}
	if launch.RegisteredAt.IsZero() {
		launch.RegisteredAt = r.now()
	}
	r.pending = append(r.pending, launch)
	r.notifications++
	return launch
}

// FindMatch scores the window against every pending launch and returns the
// best result at or above the threshold. Ties go to the earliest-registered
// launch. A returned launch leaves the pending set: at most one window per
// launch.
func (r *Registry) FindMatch(window WindowInfo) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked(r.now())

	bestIdx := -1
	var best Result
	for i, launch := range r.pending {
		if launch.ExpectedClass != window.Class {
			// Class mismatch disqualifies outright.
			continue
		}
		score, signals := Score(launch, window)
		if score > best.Confidence {
			bestIdx = i
			best = Result{
				Launch:     launch,
				WindowID:   window.ID,
				Confidence: score,
				Level:      Level(score),
				Signals:    signals,
			}
		}
	}
	if bestIdx < 0 || best.Confidence < MatchThreshold {
		return Result{}, false
	}
	r.pending = append(r.pending[:bestIdx], r.pending[bestIdx+1:]...)
	r.matched++
	return best, true
}

// Pending returns a copy of the live launch set after sweeping expired
// entries.
func (r *Registry) Pending() []PendingLaunch {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked(r.now())
	return append([]PendingLaunch(nil), r.pending...)
}

// Stats reports totals and the match rate percentage.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{
		Notifications: r.notifications,
		Matched:       r.matched,
		Pending:       len(r.pending),
	}
	if r.notifications > 0 {
		stats.MatchRate = float64(r.matched) / float64(r.notifications) * 100
	}
	return stats
}

func (r *Registry) expireLocked(now time.Time) {
	live := r.pending[:0]
	for _, launch := range r.pending {
		if now.Sub(launch.RegisteredAt) > r.timeout {
			continue
		}
		live = append(live, launch)
	}
	r.pending = live
}
