package launch

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreAllSignals(t *testing.T) {
	registered := time.Now()
	launch := PendingLaunch{ExpectedClass: "Code", Workspace: 2, RegisteredAt: registered}
	window := WindowInfo{Class: "Code", Workspace: 2, Timestamp: registered.Add(500 * time.Millisecond)}

	score, signals := Score(launch, window)
	if !almostEqual(score, 1.0) {
		t.Fatalf("score = %v, want 1.0", score)
	}
	if Level(score) != ConfidenceHigh {
		t.Fatalf("level = %v, want high", Level(score))
	}
	if signals[SignalClassMatch] != "true" || signals[SignalTimeDelta] != "<1s" || signals[SignalWorkspaceMatch] != "true" {
		t.Fatalf("unexpected signals %v", signals)
	}
}

func TestScoreMediumBoundary(t *testing.T) {
	registered := time.Now()
	launch := PendingLaunch{ExpectedClass: "Code", Workspace: 2, RegisteredAt: registered}
	window := WindowInfo{Class: "Code", Workspace: 7, Timestamp: registered.Add(3 * time.Second)}

	score, signals := Score(launch, window)
	if !almostEqual(score, 0.6) {
		t.Fatalf("score = %v, want 0.6", score)
	}
	if Level(score) != ConfidenceMedium {
		t.Fatalf("level = %v, want medium", Level(score))
	}
	if signals[SignalTimeDelta] != "2-5s" || signals[SignalWorkspaceMatch] != "false" {
		t.Fatalf("unexpected signals %v", signals)
	}
}

func TestScoreClassMismatchDisqualifies(t *testing.T) {
	launch := PendingLaunch{ExpectedClass: "Code", RegisteredAt: time.Now()}
	score, signals := Score(launch, WindowInfo{Class: "firefox", Timestamp: time.Now()})
	if score != 0 {
		t.Fatalf("score = %v, want 0", score)
	}
	if signals[SignalClassMatch] != "false" {
		t.Fatalf("unexpected signals %v", signals)
	}
}

func TestTimeBuckets(t *testing.T) {
	tests := []struct {
		delta  time.Duration
		bucket string
		weight float64
	}{
		{-50 * time.Millisecond, "<1s", 0.3},
		{999 * time.Millisecond, "<1s", 0.3},
		{1500 * time.Millisecond, "1-2s", 0.2},
		{4 * time.Second, "2-5s", 0.1},
		{6 * time.Second, ">5s", 0},
	}
	for _, tt := range tests {
		bucket, weight := timeBucket(tt.delta)
		if bucket != tt.bucket || !almostEqual(weight, tt.weight) {
			t.Fatalf("timeBucket(%v) = %q/%v, want %q/%v", tt.delta, bucket, weight, tt.bucket, tt.weight)
		}
	}
}

func TestRegistryExpiryWindow(t *testing.T) {
	base := time.Unix(1000, 0)
	current := base
	registry := NewRegistry(5 * time.Second)
	registry.now = func() time.Time { return current }

	registry.Register(PendingLaunch{App: "code", ExpectedClass: "Code", Workspace: 2})

	current = base.Add(4900 * time.Millisecond)
	result, ok := registry.FindMatch(WindowInfo{ID: 1, Class: "Code", Workspace: 2, Timestamp: current})
	if !ok {
		t.Fatal("launch must still be matchable at 4.9s")
	}
	if result.Launch.App != "code" {
		t.Fatalf("unexpected match %+v", result)
	}

	registry.Register(PendingLaunch{App: "code", ExpectedClass: "Code", Workspace: 2, RegisteredAt: base})
	current = base.Add(5100 * time.Millisecond)
	if _, ok := registry.FindMatch(WindowInfo{ID: 2, Class: "Code", Workspace: 2, Timestamp: current}); ok {
		t.Fatal("launch must be expired at 5.1s")
	}
	if len(registry.Pending()) != 0 {
		t.Fatal("expired launch must leave the pending set")
	}
}

func TestTieGoesToEarliestLaunch(t *testing.T) {
	base := time.Unix(2000, 0)
	registry := NewRegistry(DefaultTimeout)
	registry.now = func() time.Time { return base.Add(time.Second) }

	registry.Register(PendingLaunch{ID: "early", ExpectedClass: "kitty", Workspace: 1, RegisteredAt: base})
	registry.Register(PendingLaunch{ID: "late", ExpectedClass: "kitty", Workspace: 1, RegisteredAt: base})

	result, ok := registry.FindMatch(WindowInfo{ID: 3, Class: "kitty", Workspace: 1, Timestamp: base.Add(500 * time.Millisecond)})
	if !ok {
		t.Fatal("expected a match")
	}
	if result.Launch.ID != "early" {
		t.Fatalf("tie must go to earliest launch, got %q", result.Launch.ID)
	}
}

func TestAtMostOneWindowPerLaunch(t *testing.T) {
	base := time.Unix(3000, 0)
	registry := NewRegistry(DefaultTimeout)
	registry.now = func() time.Time { return base.Add(time.Second) }

	registry.Register(PendingLaunch{ExpectedClass: "Code", Workspace: 2, RegisteredAt: base})
	window := WindowInfo{ID: 4, Class: "Code", Workspace: 2, Timestamp: base.Add(800 * time.Millisecond)}
	if _, ok := registry.FindMatch(window); !ok {
		t.Fatal("first window must match")
	}
	if _, ok := registry.FindMatch(window); ok {
		t.Fatal("matched launch must leave the pending set")
	}
}

func TestSequentialLaunchesFullMatchRate(t *testing.T) {
	base := time.Unix(4000, 0)
	registry := NewRegistry(DefaultTimeout)
	current := base
	registry.now = func() time.Time { return current }

	first := registry.Register(PendingLaunch{ExpectedClass: "Code", Project: "nixos", Workspace: 2, RegisteredAt: base})
	result, ok := registry.FindMatch(WindowInfo{ID: 10, Class: "Code", Workspace: 2, Timestamp: base.Add(800 * time.Millisecond)})
	if !ok || result.Level != ConfidenceHigh || result.Launch.ID != first.ID {
		t.Fatalf("first correlation failed: %+v ok=%v", result, ok)
	}

	current = base.Add(3 * time.Second)
	second := registry.Register(PendingLaunch{ExpectedClass: "firefox", Project: "dotfiles", Workspace: 3, RegisteredAt: current})
	result, ok = registry.FindMatch(WindowInfo{ID: 11, Class: "firefox", Workspace: 3, Timestamp: current.Add(700 * time.Millisecond)})
	if !ok || result.Level != ConfidenceHigh || result.Launch.Project != "dotfiles" {
		t.Fatalf("second correlation failed: %+v ok=%v", result, ok)
	}
	if second.ID == first.ID {
		t.Fatal("launches must have distinct ids")
	}

	stats := registry.Stats()
	if stats.Notifications != 2 || stats.Matched != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !almostEqual(stats.MatchRate, 100) {
		t.Fatalf("match rate = %v, want 100", stats.MatchRate)
	}
}
