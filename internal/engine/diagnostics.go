package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swayscope/swayscope/internal/eventlog"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/launch"
	"github.com/swayscope/swayscope/internal/metrics"
	"github.com/swayscope/swayscope/internal/rules"
	"github.com/swayscope/swayscope/internal/state"
)

// staleEventThreshold is how long the stream may stay silent before health
// degrades to warning.
const staleEventThreshold = 2 * time.Minute

// ErrDebounced reports that a window action was suppressed by the
// per-(action, window) minimum interval.
var ErrDebounced = errors.New("action debounced")

// ErrWindowNotFound reports a window id unknown both to the daemon and
// upstream.
var ErrWindowNotFound = errors.New("window not found")

// Health is the liveness summary served by the control socket.
type Health struct {
	Status          string           `json:"status"`
	InstanceID      string           `json:"instanceId"`
	UptimeSeconds   float64          `json:"uptimeSeconds"`
	Subscribed      bool             `json:"subscribed"`
	UpstreamOK      bool             `json:"upstreamConnected"`
	LastEventAt     time.Time        `json:"lastEventAt,omitempty"`
	ActiveProject   string           `json:"activeProject,omitempty"`
	TrackedWindows  int              `json:"trackedWindows"`
	PendingLaunches int              `json:"pendingLaunches"`
	Events          metrics.Snapshot `json:"events"`
}

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Health derives the overall status: critical when the upstream connection
// or the subscription is down, warning when the stream has been silent past
// the threshold, healthy otherwise.
func (e *Engine) Health() Health {
	e.mu.Lock()
	subscribed := e.subscribed
	upstreamOK := e.upstreamOK
	project := e.activeProject
	e.mu.Unlock()

	health := Health{
		InstanceID:      e.instanceID,
		UptimeSeconds:   time.Since(e.started).Seconds(),
		Subscribed:      subscribed,
		UpstreamOK:      upstreamOK,
		LastEventAt:     e.counters.LastActivity(),
		ActiveProject:   project,
		TrackedWindows:  e.windows.Len(),
		PendingLaunches: len(e.launches.Pending()),
		Events:          e.counters.Snapshot(),
	}
	switch {
	case !upstreamOK || !subscribed:
		health.Status = HealthCritical
	case e.lastActivityOrStart().Before(time.Now().Add(-staleEventThreshold)):
		health.Status = HealthWarning
	default:
		health.Status = HealthHealthy
	}
	return health
}

func (e *Engine) lastActivityOrStart() time.Time {
	if last := e.counters.LastActivity(); !last.IsZero() {
		return last
	}
	return e.started
}

// Identity is a window record together with its current classification.
type Identity struct {
	Window         state.WindowRecord   `json:"window"`
	Classification rules.Classification `json:"classification"`
}

// WindowIdentity returns the tracked record and its classification
// provenance. A window that exists upstream but was never admitted yields
// ErrWindowNotTracked; an id unknown to both sides yields ErrWindowNotFound.
func (e *Engine) WindowIdentity(ctx context.Context, id int64) (Identity, error) {
	record, ok := e.windows.Get(id)
	if !ok {
		tree, err := e.compositor.GetTree(ctx)
		if err != nil {
			return Identity{}, fmt.Errorf("query tree: %w", err)
		}
		if tree.FindByID(id) != nil {
			return Identity{}, state.ErrWindowNotTracked
		}
		return Identity{}, ErrWindowNotFound
	}
	return Identity{
		Window:         record,
		Classification: e.classify(record.Class),
	}, nil
}

// Windows returns the tracked records sorted by id.
func (e *Engine) Windows() []state.WindowRecord {
	return e.windows.All()
}

// RecentEvents returns the tail of the audit log.
func (e *Engine) RecentEvents(limit int, typeFilter string) []eventlog.Entry {
	return e.auditLog.Recent(limit, typeFilter)
}

// Mismatch is one disagreement between a cached record and upstream.
type Mismatch struct {
	WindowID int64  `json:"windowId"`
	Property string `json:"property"`
	Cached   string `json:"cached"`
	Upstream string `json:"upstream"`
}

// Validation is the result of recomputing tracked state from upstream.
type Validation struct {
	Checked            int        `json:"checked"`
	Mismatches         []Mismatch `json:"mismatches,omitempty"`
	ConsistencyPercent float64    `json:"consistencyPercent"`
}

// ValidateState re-derives workspace and presence for every tracked window
// from a fresh tree and reports the disagreements.
func (e *Engine) ValidateState(ctx context.Context) (Validation, error) {
	tree, err := e.compositor.GetTree(ctx)
	if err != nil {
		return Validation{}, fmt.Errorf("query tree: %w", err)
	}
	records := e.windows.All()
	validation := Validation{Checked: len(records)}
	consistent := 0
	for _, record := range records {
		node := tree.FindByID(record.ID)
		if node == nil {
			validation.Mismatches = append(validation.Mismatches, Mismatch{
				WindowID: record.ID,
				Property: "presence",
				Cached:   "tracked",
				Upstream: "absent",
			})
			continue
		}
		clean := true
		if upstream := tree.WorkspaceForWindow(record.ID); upstream != record.Workspace {
			validation.Mismatches = append(validation.Mismatches, Mismatch{
				WindowID: record.ID,
				Property: "workspace",
				Cached:   fmt.Sprintf("%d", record.Workspace),
				Upstream: fmt.Sprintf("%d", upstream),
			})
			clean = false
		}
		if node.Output != "" && node.Output != record.Output {
			validation.Mismatches = append(validation.Mismatches, Mismatch{
				WindowID: record.ID,
				Property: "output",
				Cached:   record.Output,
				Upstream: node.Output,
			})
			clean = false
		}
		if clean {
			consistent++
		}
	}
	if validation.Checked > 0 {
		validation.ConsistencyPercent = float64(consistent) / float64(validation.Checked) * 100
	} else {
		validation.ConsistencyPercent = 100
	}
	return validation, nil
}

// Report is the composite diagnostic document; sections are opt-in.
type Report struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Health      Health               `json:"health"`
	Launches    launch.Stats         `json:"launches"`
	Windows     []state.WindowRecord `json:"windows,omitempty"`
	Events      []eventlog.Entry     `json:"events,omitempty"`
	Validation  *Validation          `json:"validation,omitempty"`
}

// DiagnosticReport assembles health plus the requested sections.
func (e *Engine) DiagnosticReport(ctx context.Context, includeWindows, includeEvents, includeValidation bool) (Report, error) {
	report := Report{
		GeneratedAt: time.Now(),
		Health:      e.Health(),
		Launches:    e.LaunchStats(),
	}
	if includeWindows {
		report.Windows = e.Windows()
	}
	if includeEvents {
		report.Events = e.RecentEvents(0, "")
	}
	if includeValidation {
		validation, err := e.ValidateState(ctx)
		if err != nil {
			return Report{}, err
		}
		report.Validation = &validation
	}
	return report, nil
}

// CloseWindow kills a tracked window, subject to debouncing.
func (e *Engine) CloseWindow(ctx context.Context, id int64) error {
	return e.windowAction(ctx, "close", id, ipc.CriteriaCommand(id, "kill"))
}

// MoveWindow moves a tracked window to a workspace, subject to debouncing.
func (e *Engine) MoveWindow(ctx context.Context, id int64, workspace int) error {
	if workspace < 1 || workspace > 9 {
		return fmt.Errorf("workspace %d out of range", workspace)
	}
	if err := e.windowAction(ctx, "move", id, ipc.MoveToWorkspace(id, workspace)); err != nil {
		return err
	}
	e.windows.Move(id, workspace, "")
	return nil
}

func (e *Engine) windowAction(ctx context.Context, action string, id int64, command string) error {
	if _, ok := e.windows.Get(id); !ok {
		return state.ErrWindowNotTracked
	}
	e.mu.Lock()
	allowed := e.actions.allow(action, id)
	e.mu.Unlock()
	if !allowed {
		return ErrDebounced
	}
	if err := e.compositor.RunCommand(ctx, command); err != nil {
		return fmt.Errorf("%s window %d: %w", action, id, err)
	}
	e.appendAudit(eventlog.Entry{
		Type:   "action." + action,
		Source: eventlog.SourceIPC,
		Fields: map[string]any{"window": id},
	})
	return nil
}
