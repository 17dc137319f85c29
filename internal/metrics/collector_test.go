package metrics

import (
	"testing"
	"time"
)

func TestCollectorCountsPerType(t *testing.T) {
	c := NewCollector()
	c.RecordEvent("window", false)
	c.RecordEvent("window", true)
	c.RecordEvent("output", false)

	snap := c.Snapshot()
	if snap.Totals.Count != 3 {
		t.Fatalf("total count = %d, want 3", snap.Totals.Count)
	}
	if snap.Totals.Errors != 1 {
		t.Fatalf("total errors = %d, want 1", snap.Totals.Errors)
	}
	if len(snap.Events) != 2 {
		t.Fatalf("event entries = %d, want 2", len(snap.Events))
	}
	if snap.Events[0].Type != "output" || snap.Events[1].Type != "window" {
		t.Fatalf("entries not sorted by type: %+v", snap.Events)
	}
	win := snap.Events[1]
	if win.Count != 2 || win.Errors != 1 {
		t.Fatalf("window counters = %d/%d, want 2/1", win.Count, win.Errors)
	}
	if win.LastError.IsZero() {
		t.Fatal("expected LastError to be set after a failed event")
	}
}

func TestCollectorLastActivity(t *testing.T) {
	c := NewCollector()
	if !c.LastActivity().IsZero() {
		t.Fatal("expected zero activity before any event")
	}
	before := time.Now()
	c.RecordEvent("tick", false)
	last := c.LastActivity()
	if last.Before(before) {
		t.Fatalf("last activity %v precedes event at %v", last, before)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordEvent("window", false)
	if !c.LastActivity().IsZero() {
		t.Fatal("nil collector reported activity")
	}
	if snap := c.Snapshot(); len(snap.Events) != 0 {
		t.Fatalf("nil collector snapshot has entries: %+v", snap.Events)
	}
}
