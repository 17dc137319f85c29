// Package engine runs the event dispatch loop: it consumes the compositor
// event stream, drives the classification, launch-correlation, and output
// engines, and issues the resulting compositor commands.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/eventlog"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/launch"
	"github.com/swayscope/swayscope/internal/metrics"
	"github.com/swayscope/swayscope/internal/outputs"
	"github.com/swayscope/swayscope/internal/state"
	"github.com/swayscope/swayscope/internal/util"
)

// compositorClient is the outbound surface of the sway IPC socket.
type compositorClient interface {
	RunCommand(ctx context.Context, command string) error
	GetWorkspaces(ctx context.Context) ([]ipc.Workspace, error)
	GetOutputs(ctx context.Context) ([]ipc.Output, error)
	GetTree(ctx context.Context) (*ipc.Node, error)
	GetMarks(ctx context.Context) ([]string, error)
}

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

const defaultResyncInterval = 60 * time.Second

// Engine ties the decision engines to the compositor connection. All event
// processing happens on the single Run goroutine; the control surface only
// reads through the accessor methods.
type Engine struct {
	compositor compositorClient
	logger     *util.Logger

	windows    *state.Store
	launches   *launch.Registry
	outputDiff *outputs.DiffService
	auditLog   *eventlog.Log
	counters   *metrics.Collector
	actions    *debouncer

	mu              sync.Mutex
	snapshot        *config.Snapshot
	activeProject   string
	roles           map[outputs.Role]string
	activeWorkspace int
	subscribed      bool
	upstreamOK      bool

	instanceID    string
	started       time.Time
	subscribe     subscribeFunc
	tickerFactory func() ticker
}

// New creates an engine around an initial configuration snapshot.
func New(compositor compositorClient, logger *util.Logger, snapshot *config.Snapshot) *Engine {
	return &Engine{
		compositor: compositor,
		logger:     logger,
		windows:    state.NewStore(),
		launches:   launch.NewRegistry(launch.DefaultTimeout),
		outputDiff: outputs.NewDiffService(),
		auditLog:   eventlog.NewLog(0),
		counters:   metrics.NewCollector(),
		actions:    newDebouncer(0),
		snapshot:   snapshot,
		instanceID: uuid.NewString(),
		started:    time.Now(),
		subscribe:  ipc.Subscribe,
		tickerFactory: func() ticker {
			return realTicker{time.NewTicker(defaultResyncInterval)}
		},
	}
}

// Run seeds the state from a full query, subscribes to the event stream, and
// processes events until context cancellation. The periodic resync guards
// against drift from events processed with partial information.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.resync(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	events, err := e.subscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	e.setUpstream(true, true)
	defer e.setUpstream(false, false)
	e.appendAudit(eventlog.Entry{
		Type:   "daemon.started",
		Source: eventlog.SourceDaemon,
		Fields: map[string]any{"windows": e.windows.Len()},
	})

	tick := e.newTicker()
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C():
			if err := e.resync(ctx); err != nil {
				if ctx.Err() != nil {
					e.logger.Debugf("periodic resync aborted: %v", err)
				} else {
					e.logger.Errorf("periodic resync failed: %v", err)
				}
			}
		case ev, ok := <-events:
			if !ok {
				e.setUpstream(false, false)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("event stream closed")
			}
			e.handleEvent(ctx, ev)
		}
	}
}

func (e *Engine) newTicker() ticker {
	if e.tickerFactory != nil {
		return e.tickerFactory()
	}
	return realTicker{time.NewTicker(defaultResyncInterval)}
}

func (e *Engine) subscribeEvents(ctx context.Context) (<-chan ipc.Event, error) {
	if e.subscribe != nil {
		return e.subscribe(ctx, e.logger)
	}
	return ipc.Subscribe(ctx, e.logger)
}

// handleEvent processes one upstream event. Errors are contained: they are
// logged and recorded on the audit entry, never allowed to end the loop.
func (e *Engine) handleEvent(ctx context.Context, ev ipc.Event) {
	start := time.Now()
	entry := eventlog.Entry{
		Type:   ev.EventKind(),
		Source: eventlog.SourceWindowManager,
	}
	fields, err := e.applyEvent(ctx, ev)
	entry.ElapsedMs = float64(time.Since(start)) / float64(time.Millisecond)
	entry.Fields = fields
	if err != nil {
		entry.Error = err.Error()
		e.logger.Errorf("%s event: %v", ev.EventKind(), err)
	}
	e.auditLog.Append(entry)
	e.counters.RecordEvent(ev.EventKind(), err != nil)
}

func (e *Engine) applyEvent(ctx context.Context, ev ipc.Event) (map[string]any, error) {
	switch ev := ev.(type) {
	case ipc.WindowEvent:
		return e.applyWindowEvent(ctx, ev)
	case ipc.WorkspaceEvent:
		return e.applyWorkspaceEvent(ev)
	case ipc.OutputEvent:
		return e.applyOutputEvent(ctx, ev)
	case ipc.TickEvent:
		return e.applyTickEvent(ev)
	case ipc.ShutdownEvent:
		e.logger.Warnf("compositor shutting down (%s)", ev.Change)
		e.setUpstream(true, false)
		return map[string]any{"change": ev.Change}, nil
	default:
		return nil, nil
	}
}

// resync rebuilds the window store and the output cache from full queries.
// Records that survive keep their project association and timestamps.
func (e *Engine) resync(ctx context.Context) error {
	tree, err := e.compositor.GetTree(ctx)
	if err != nil {
		return fmt.Errorf("query tree: %w", err)
	}
	seen := make(map[int64]struct{})
	tree.Walk(func(node *ipc.Node) bool {
		if !node.IsWindow() {
			return true
		}
		seen[node.ID] = struct{}{}
		record, tracked := e.windows.Get(node.ID)
		if !tracked {
			record = e.newRecord(node, tree.WorkspaceForWindow(node.ID))
		} else {
			record.Title = node.Name
			record.Marks = append([]string(nil), node.Marks...)
			record.Workspace = tree.WorkspaceForWindow(node.ID)
			record.Output = node.Output
		}
		e.windows.Upsert(record)
		return true
	})
	for _, record := range e.windows.All() {
		if _, ok := seen[record.ID]; !ok {
			e.windows.Remove(record.ID)
		}
	}

	states, err := e.queryOutputs(ctx)
	if err != nil {
		return err
	}
	e.outputDiff.Init(states)
	e.mu.Lock()
	e.roles = outputs.AssignRoles(states)
	e.mu.Unlock()
	return nil
}

func (e *Engine) queryOutputs(ctx context.Context) ([]outputs.OutputState, error) {
	raw, err := e.compositor.GetOutputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	states := make([]outputs.OutputState, 0, len(raw))
	for _, out := range raw {
		states = append(states, outputs.StateFromIPC(out))
	}
	return states, nil
}

// newRecord classifies a window and builds its initial record.
func (e *Engine) newRecord(node *ipc.Node, workspace int) state.WindowRecord {
	classification := e.classify(node.WindowClass())
	return state.WindowRecord{
		ID:        node.ID,
		Class:     node.WindowClass(),
		Instance:  node.Instance(),
		Title:     node.Name,
		PID:       node.PID,
		Workspace: workspace,
		Output:    node.Output,
		Scope:     string(classification.Scope),
		Source:    string(classification.Source),
		Marks:     append([]string(nil), node.Marks...),
		CreatedAt: time.Now(),
	}
}

// ReloadConfig swaps the configuration snapshot atomically. The active
// project is kept when it still exists, otherwise cleared.
func (e *Engine) ReloadConfig(snapshot *config.Snapshot) {
	e.mu.Lock()
	e.snapshot = snapshot
	if e.activeProject != "" {
		if _, ok := snapshot.Projects[e.activeProject]; !ok {
			e.logger.Warnf("active project %q dropped by reload", e.activeProject)
			e.activeProject = ""
		}
	}
	projects := len(snapshot.Projects)
	e.mu.Unlock()
	e.logger.Infof("configuration reloaded (%d projects)", projects)
	e.appendAudit(eventlog.Entry{
		Type:   "config.reloaded",
		Source: eventlog.SourceDaemon,
		Fields: map[string]any{"projects": projects},
	})
}

// ActiveProject returns the currently selected project name, or "".
func (e *Engine) ActiveProject() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeProject
}

// SetActiveProject selects the classification context. An empty name clears
// the selection.
func (e *Engine) SetActiveProject(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name != "" {
		if _, ok := e.snapshot.Projects[name]; !ok {
			return fmt.Errorf("unknown project %q", name)
		}
	}
	e.activeProject = name
	e.logger.Infof("active project: %q", name)
	return nil
}

func (e *Engine) currentSnapshot() (*config.Snapshot, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot, e.activeProject
}

func (e *Engine) setUpstream(subscribed, ok bool) {
	e.mu.Lock()
	e.subscribed = subscribed
	e.upstreamOK = ok
	e.mu.Unlock()
}

func (e *Engine) appendAudit(entry eventlog.Entry) {
	e.auditLog.Append(entry)
}
