package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/swayscope/swayscope/internal/eventlog"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/launch"
	"github.com/swayscope/swayscope/internal/outputs"
	"github.com/swayscope/swayscope/internal/rules"
	"github.com/swayscope/swayscope/internal/state"
)

func (e *Engine) applyWindowEvent(ctx context.Context, ev ipc.WindowEvent) (map[string]any, error) {
	fields := map[string]any{
		"change": ev.Change,
		"window": ev.Container.ID,
	}
	switch ev.Change {
	case "new":
		return fields, e.onWindowNew(ctx, &ev.Container, fields)
	case "close":
		e.windows.Remove(ev.Container.ID)
		return fields, nil
	case "focus":
		if !e.windows.Touch(ev.Container.ID, time.Now()) {
			// Focus can arrive before new during bursts; admit the window.
			return fields, e.onWindowNew(ctx, &ev.Container, fields)
		}
		return fields, nil
	case "move":
		workspace, output, err := e.locateWindow(ctx, ev.Container.ID)
		if err != nil {
			return fields, err
		}
		fields["workspace"] = workspace
		e.windows.Move(ev.Container.ID, workspace, output)
		return fields, nil
	case "title":
		e.windows.SetTitle(ev.Container.ID, ev.Container.Name)
		return fields, nil
	case "mark":
		e.windows.SetMarks(ev.Container.ID, ev.Container.Marks)
		return fields, nil
	case "floating":
		if record, ok := e.windows.Get(ev.Container.ID); ok {
			record.Floating = ev.Container.Type == "floating_con"
			e.windows.Upsert(record)
		}
		return fields, nil
	default:
		return fields, nil
	}
}

// onWindowNew is the main decision path: launch correlation first, then the
// precedence classifier, then placement commands.
func (e *Engine) onWindowNew(ctx context.Context, container *ipc.Node, fields map[string]any) error {
	if !container.IsWindow() {
		return nil
	}
	workspace, output, err := e.locateWindow(ctx, container.ID)
	if err != nil {
		e.logger.Debugf("window %d not in tree yet: %v", container.ID, err)
		workspace = e.currentWorkspace()
	}
	record := e.newRecord(container, workspace)
	record.Output = output

	info := launch.WindowInfo{
		ID:        container.ID,
		Class:     container.WindowClass(),
		PID:       container.PID,
		Workspace: workspace,
		Timestamp: time.Now(),
	}
	if result, ok := e.launches.FindMatch(info); ok {
		return e.applyLaunchMatch(ctx, record, result, fields)
	}

	classification := e.classify(record.Class)
	record.Scope = string(classification.Scope)
	record.Source = string(classification.Source)
	fields["scope"] = record.Scope
	fields["source"] = record.Source
	if classification.Rule != "" {
		fields["rule"] = classification.Rule
	}
	e.windows.Upsert(record)

	if classification.Workspace > 0 && classification.Workspace != workspace {
		if err := e.compositor.RunCommand(ctx, ipc.MoveToWorkspace(record.ID, classification.Workspace)); err != nil {
			return fmt.Errorf("place window %d: %w", record.ID, err)
		}
		e.windows.Move(record.ID, classification.Workspace, "")
		fields["workspace"] = classification.Workspace
	}
	if classification.Command != "" {
		if err := e.compositor.RunCommand(ctx, ipc.CriteriaCommand(record.ID, classification.Command)); err != nil {
			return fmt.Errorf("rule command for window %d: %w", record.ID, err)
		}
	}
	return nil
}

// applyLaunchMatch assigns the matched launch's project, marks the window,
// and moves it to the launch's target workspace.
func (e *Engine) applyLaunchMatch(ctx context.Context, record state.WindowRecord, result launch.Result, fields map[string]any) error {
	record.Project = result.Launch.Project
	record.Scope = string(rules.ScopeScoped)
	record.Source = "launch"
	e.windows.Upsert(record)

	fields["launch"] = result.Launch.ID
	fields["project"] = result.Launch.Project
	fields["confidence"] = result.Confidence
	fields["level"] = string(result.Level)
	e.logger.Infof("window %d matched launch %s (%s, confidence %.2f)",
		record.ID, result.Launch.App, result.Level, result.Confidence)

	if result.Launch.Project != "" {
		mark, err := ipc.AddMark(record.ID, "project:"+result.Launch.Project)
		if err == nil {
			if err := e.compositor.RunCommand(ctx, mark); err != nil {
				return fmt.Errorf("mark window %d: %w", record.ID, err)
			}
			e.windows.SetMarks(record.ID, append(record.Marks, "project:"+result.Launch.Project))
		}
	}
	if result.Launch.Workspace > 0 && result.Launch.Workspace != record.Workspace {
		if err := e.compositor.RunCommand(ctx, ipc.MoveToWorkspace(record.ID, result.Launch.Workspace)); err != nil {
			return fmt.Errorf("place window %d: %w", record.ID, err)
		}
		e.windows.Move(record.ID, result.Launch.Workspace, "")
	}
	return nil
}

func (e *Engine) applyWorkspaceEvent(ev ipc.WorkspaceEvent) (map[string]any, error) {
	fields := map[string]any{"change": ev.Change}
	if ev.Current != nil {
		fields["workspace"] = ev.Current.Num
	}
	if ev.Change == "focus" && ev.Current != nil {
		e.mu.Lock()
		e.activeWorkspace = ev.Current.Num
		e.mu.Unlock()
	}
	return fields, nil
}

// applyOutputEvent re-queries the topology, records typed diffs, and
// re-places workspaces whose preferred role now resolves elsewhere.
func (e *Engine) applyOutputEvent(ctx context.Context, ev ipc.OutputEvent) (map[string]any, error) {
	fields := map[string]any{"change": ev.Change}
	states, err := e.queryOutputs(ctx)
	if err != nil {
		return fields, err
	}
	diffs := e.outputDiff.DetectChanges(states)
	kinds := make([]string, 0, len(diffs))
	for _, diff := range diffs {
		kinds = append(kinds, string(diff.Kind))
		if diff.Kind == outputs.DiffUnspecified {
			continue
		}
		e.appendAudit(eventlog.Entry{
			Type:   "output." + string(diff.Kind),
			Source: eventlog.SourceWindowManager,
			Fields: outputDiffFields(diff),
		})
		e.logger.Infof("output %s %s", diff.Name, diff.Kind)
	}
	fields["diffs"] = strings.Join(kinds, ",")

	assignments := outputs.AssignRoles(states)
	e.mu.Lock()
	changed := !rolesEqual(e.roles, assignments)
	e.roles = assignments
	e.mu.Unlock()
	if !changed {
		return fields, nil
	}
	return fields, e.replaceWorkspaces(ctx, assignments)
}

// replaceWorkspaces moves every workspace whose resolved output differs from
// where it currently renders. Command failures abort the pass; the next
// output event re-derives placement from scratch.
func (e *Engine) replaceWorkspaces(ctx context.Context, assignments map[outputs.Role]string) error {
	workspaces, err := e.compositor.GetWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("query workspaces: %w", err)
	}
	snapshot, project := e.currentSnapshot()
	preferred := snapshot.WorkspaceRoles(project)
	for _, ws := range workspaces {
		desired, ok := outputs.OutputForWorkspace(ws.Num, assignments, preferred)
		if !ok || desired == ws.Output {
			continue
		}
		if err := e.compositor.RunCommand(ctx, ipc.MoveWorkspaceToOutput(ws.Num, desired)); err != nil {
			return fmt.Errorf("move workspace %d to %s: %w", ws.Num, desired, err)
		}
		e.logger.Infof("workspace %d moved to output %s", ws.Num, desired)
	}
	return nil
}

// launchNotice is the JSON payload of a launch tick, as sent by the
// launcher script via send_tick.
type launchNotice struct {
	Type      string `json:"type"`
	App       string `json:"app"`
	Project   string `json:"project"`
	Workspace int    `json:"workspace"`
	Class     string `json:"class"`
	PID       int    `json:"pid"`
}

func (e *Engine) applyTickEvent(ev ipc.TickEvent) (map[string]any, error) {
	fields := map[string]any{}
	if ev.First || ev.Payload == "" {
		return fields, nil
	}
	var notice launchNotice
	if err := json.Unmarshal([]byte(ev.Payload), &notice); err != nil {
		return fields, fmt.Errorf("decode tick payload: %w", err)
	}
	fields["type"] = notice.Type
	switch notice.Type {
	case "launch":
		pending := e.registerLaunch(launch.PendingLaunch{
			App:           notice.App,
			Project:       notice.Project,
			Workspace:     notice.Workspace,
			LauncherPID:   notice.PID,
			ExpectedClass: notice.Class,
		})
		fields["launch"] = pending.ID
		fields["app"] = pending.App
		return fields, nil
	case "project":
		return fields, e.SetActiveProject(notice.Project)
	default:
		return fields, nil
	}
}

// NotifyLaunch admits a launch notification arriving over the control
// socket instead of a tick.
func (e *Engine) NotifyLaunch(pending launch.PendingLaunch) launch.PendingLaunch {
	registered := e.registerLaunch(pending)
	e.appendAudit(eventlog.Entry{
		Type:   "launch.notified",
		Source: eventlog.SourceIPC,
		Fields: map[string]any{
			"launch": registered.ID,
			"app":    registered.App,
			"class":  registered.ExpectedClass,
		},
	})
	return registered
}

func (e *Engine) registerLaunch(pending launch.PendingLaunch) launch.PendingLaunch {
	registered := e.launches.Register(pending)
	e.logger.Debugf("launch registered: app=%s class=%s project=%s",
		registered.App, registered.ExpectedClass, registered.Project)
	return registered
}

// LaunchStats reports launch correlation effectiveness.
func (e *Engine) LaunchStats() launch.Stats {
	return e.launches.Stats()
}

func (e *Engine) classify(windowClass string) rules.Classification {
	snapshot, project := e.currentSnapshot()
	var ruleset *rules.Ruleset
	if snapshot != nil {
		ruleset = snapshot.Ruleset
	}
	return rules.Classify(windowClass, rules.Context{
		ProjectName:    project,
		ProjectClasses: snapshot.ProjectClasses(project),
		Rules:          ruleset,
	})
}

// locateWindow resolves a window's workspace and output from a fresh tree.
func (e *Engine) locateWindow(ctx context.Context, id int64) (int, string, error) {
	tree, err := e.compositor.GetTree(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("query tree: %w", err)
	}
	node := tree.FindByID(id)
	if node == nil {
		return 0, "", fmt.Errorf("window %d not in tree", id)
	}
	return tree.WorkspaceForWindow(id), node.Output, nil
}

func (e *Engine) currentWorkspace() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeWorkspace
}

func rolesEqual(a, b map[outputs.Role]string) bool {
	if len(a) != len(b) {
		return false
	}
	for role, name := range a {
		if b[role] != name {
			return false
		}
	}
	return true
}

func outputDiffFields(diff outputs.OutputDiff) map[string]any {
	fields := map[string]any{"output": diff.Name}
	if len(diff.Changed) > 0 {
		changed := make([]string, 0, len(diff.Changed))
		for property := range diff.Changed {
			changed = append(changed, property)
		}
		fields["properties"] = changed
	}
	return fields
}
