package outputs

import (
	"fmt"
	"sort"
	"sync"
)

// DiffKind classifies an output topology change.
type DiffKind string

const (
	DiffConnected      DiffKind = "connected"
	DiffDisconnected   DiffKind = "disconnected"
	DiffProfileChanged DiffKind = "profile_changed"
	DiffUnspecified    DiffKind = "unspecified"
)

// PropertyChange is a before/after pair for one changed property.
type PropertyChange struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// OutputDiff is one typed delta produced by a detection pass.
type OutputDiff struct {
	Name    string                    `json:"name,omitempty"`
	Kind    DiffKind                  `json:"kind"`
	Old     *OutputState              `json:"old,omitempty"`
	New     *OutputState              `json:"new,omitempty"`
	Changed map[string]PropertyChange `json:"changed,omitempty"`
}

// DiffService caches the last-observed state per output and computes typed
// diffs on every output event. One mutex covers the whole read-diff-replace
// sequence so initialization and detection cannot interleave.
type DiffService struct {
	mu   sync.Mutex
	last map[string]OutputState
}

func NewDiffService() *DiffService {
	return &DiffService{}
}

// Init seeds the cache with the startup snapshot.
func (s *DiffService) Init(states []OutputState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snapshotMap(states)
}

// DetectChanges diffs the current outputs against the cache, replaces the
// cache (last-write-wins, no merge), and returns the deltas sorted by output
// name. When nothing actionable changed a single unspecified diff is
// returned so callers always have something to log.
func (s *DiffService) DetectChanges(current []OutputState) []OutputDiff {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := snapshotMap(current)
	var diffs []OutputDiff
	for name, state := range now {
		prev, known := s.last[name]
		if !known {
			connected := state
			diffs = append(diffs, OutputDiff{Name: name, Kind: DiffConnected, New: &connected})
			continue
		}
		if changed := diffProperties(prev, state); len(changed) > 0 {
			before, after := prev, state
			diffs = append(diffs, OutputDiff{
				Name:    name,
				Kind:    DiffProfileChanged,
				Old:     &before,
				New:     &after,
				Changed: changed,
			})
		}
	}
	for name, prev := range s.last {
		if _, still := now[name]; !still {
			gone := prev
			diffs = append(diffs, OutputDiff{Name: name, Kind: DiffDisconnected, Old: &gone})
		}
	}
	s.last = now

	if len(diffs) == 0 {
		return []OutputDiff{{Kind: DiffUnspecified}}
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Name < diffs[j].Name })
	return diffs
}

func snapshotMap(states []OutputState) map[string]OutputState {
	m := make(map[string]OutputState, len(states))
	for _, state := range states {
		m[state.Name] = state
	}
	return m
}

// diffProperties returns the before/after map restricted to the fields that
// actually changed.
func diffProperties(prev, curr OutputState) map[string]PropertyChange {
	changed := make(map[string]PropertyChange)
	record := func(field, before, after string) {
		if before != after {
			changed[field] = PropertyChange{Before: before, After: after}
		}
	}
	record("active", fmt.Sprintf("%t", prev.Active), fmt.Sprintf("%t", curr.Active))
	record("power", fmt.Sprintf("%t", prev.Power), fmt.Sprintf("%t", curr.Power))
	record("mode", prev.Mode, curr.Mode)
	record("scale", fmt.Sprintf("%g", prev.Scale), fmt.Sprintf("%g", curr.Scale))
	record("transform", prev.Transform, curr.Transform)
	record("position", fmt.Sprintf("%d,%d", prev.X, prev.Y), fmt.Sprintf("%d,%d", curr.X, curr.Y))
	if len(changed) == 0 {
		return nil
	}
	return changed
}
