package state

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrWindowNotTracked is returned when a window id exists upstream but was
// never admitted into the store.
var ErrWindowNotTracked = errors.New("window not tracked")

// WindowRecord is the daemon's view of one window. Records are owned by the
// Store; accessors hand out copies.
type WindowRecord struct {
	ID       int64  `json:"id"`
	Class    string `json:"class"`
	Instance string `json:"instance,omitempty"`
	Title    string `json:"title,omitempty"`
	PID      int    `json:"pid,omitempty"`

	Workspace int    `json:"workspace"`
	Output    string `json:"output,omitempty"`
	Floating  bool   `json:"floating,omitempty"`

	Project string   `json:"project,omitempty"`
	Scope   string   `json:"scope"`
	Source  string   `json:"source"`
	Marks   []string `json:"marks,omitempty"`

	CreatedAt     time.Time `json:"createdAt"`
	LastFocusedAt time.Time `json:"lastFocusedAt,omitempty"`
}

// Store tracks window records. All mutation happens on the event path; the
// diagnostic path only reads, so a single RWMutex covers both surfaces.
type Store struct {
	mu      sync.RWMutex
	windows map[int64]*WindowRecord
}

func NewStore() *Store {
	return &Store{windows: make(map[int64]*WindowRecord)}
}

// Upsert inserts or replaces a record keyed by window id.
func (s *Store) Upsert(record WindowRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := cloneRecord(&record)
	s.windows[record.ID] = clone
}

// Get returns a copy of the record for id.
func (s *Store) Get(id int64) (WindowRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.windows[id]
	if !ok {
		return WindowRecord{}, false
	}
	return *cloneRecord(record), true
}

// Remove drops the record for id, reporting whether it existed.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[id]; !ok {
		return false
	}
	delete(s.windows, id)
	return true
}

// Touch updates the focus timestamp for id.
func (s *Store) Touch(id int64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.windows[id]
	if !ok {
		return false
	}
	record.LastFocusedAt = at
	return true
}

// Move updates position after a window::move event.
func (s *Store) Move(id int64, workspace int, output string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.windows[id]
	if !ok {
		return false
	}
	record.Workspace = workspace
	if output != "" {
		record.Output = output
	}
	return true
}

// SetTitle updates the window title.
func (s *Store) SetTitle(id int64, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.windows[id]
	if !ok {
		return false
	}
	record.Title = title
	return true
}

// SetMarks replaces the mark set. Sway reports the full set on every mark
// event, so last-write-wins is correct here.
func (s *Store) SetMarks(id int64, marks []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.windows[id]
	if !ok {
		return false
	}
	record.Marks = append([]string(nil), marks...)
	return true
}

// AssignProject records the project association and its provenance.
func (s *Store) AssignProject(id int64, project, scope, source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.windows[id]
	if !ok {
		return false
	}
	record.Project = project
	record.Scope = scope
	record.Source = source
	return true
}

// All returns copies of every record ordered by window id.
func (s *Store) All() []WindowRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]WindowRecord, 0, len(s.windows))
	for _, record := range s.windows {
		records = append(records, *cloneRecord(record))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Len reports the number of tracked windows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

func cloneRecord(record *WindowRecord) *WindowRecord {
	clone := *record
	if len(record.Marks) > 0 {
		clone.Marks = append([]string(nil), record.Marks...)
	}
	return &clone
}
