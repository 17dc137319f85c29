package control_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/control"
	"github.com/swayscope/swayscope/internal/control/client"
	"github.com/swayscope/swayscope/internal/engine"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/rules"
	"github.com/swayscope/swayscope/internal/util"
)

type fakeCompositor struct {
	tree *ipc.Node
}

func (f *fakeCompositor) RunCommand(context.Context, string) error { return nil }

func (f *fakeCompositor) GetWorkspaces(context.Context) ([]ipc.Workspace, error) {
	return nil, nil
}

func (f *fakeCompositor) GetOutputs(context.Context) ([]ipc.Output, error) {
	return nil, nil
}

func (f *fakeCompositor) GetTree(context.Context) (*ipc.Node, error) {
	return f.tree, nil
}

func (f *fakeCompositor) GetMarks(context.Context) ([]string, error) { return nil, nil }

type harness struct {
	client   *client.Client
	socket   string
	reloaded *int
}

func startServer(t *testing.T) harness {
	t.Helper()
	tree := &ipc.Node{ID: 1, Type: "root", Nodes: []ipc.Node{{
		ID:   100,
		Type: "workspace",
		Num:  1,
		Nodes: []ipc.Node{
			{ID: 7, Type: "con", AppID: "firefox", PID: 42, Name: "firefox"},
		},
	}}}
	snapshot := &config.Snapshot{
		Projects: map[string]config.Project{},
		Ruleset:  rules.NewRuleset(nil, nil, nil, nil),
	}
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	eng := engine.New(&fakeCompositor{tree: tree}, logger, snapshot)

	reloads := 0
	socket := filepath.Join(t.TempDir(), "control.sock")
	srv, err := control.NewServer(eng, logger, func(string) error {
		reloads++
		return nil
	}, socket)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	waitForSocket(t, socket)

	c, err := client.New(socket)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return harness{client: c, socket: socket, reloaded: &reloads}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", path)
}

func TestHealthCheckOverSocket(t *testing.T) {
	h := startServer(t)
	health, err := h.client.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	// The engine never ran, so the subscription is down.
	if health.Status != engine.HealthCritical {
		t.Fatalf("status = %q, want critical", health.Status)
	}
}

func TestWindowIdentityErrorCodes(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	_, err := h.client.WindowIdentity(ctx, 7)
	if client.Code(err) != control.CodeNotTracked {
		t.Fatalf("untracked window code = %d (%v), want %d", client.Code(err), err, control.CodeNotTracked)
	}
	_, err = h.client.WindowIdentity(ctx, 9999)
	if client.Code(err) != control.CodeWindowNotFound {
		t.Fatalf("missing window code = %d (%v), want %d", client.Code(err), err, control.CodeWindowNotFound)
	}
}

func TestNotifyLaunchAndStats(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	pending, err := h.client.NotifyLaunch(ctx, control.LaunchParams{App: "code", Class: "Code", Project: "nixos"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if pending.ID == "" {
		t.Fatal("expected an assigned launch id")
	}
	stats, err := h.client.LaunchStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Notifications != 1 || stats.Pending != 1 {
		t.Fatalf("stats = %+v, want one pending notification", stats)
	}
	entries, err := h.client.RecentEvents(ctx, 10, "launch.notified")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}

	if _, err := h.client.NotifyLaunch(ctx, control.LaunchParams{App: "code"}); client.Code(err) != control.CodeInvalidParams {
		t.Fatalf("missing class code = %d, want %d", client.Code(err), control.CodeInvalidParams)
	}
}

func TestReloadAndWindowActions(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	if err := h.client.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *h.reloaded != 1 {
		t.Fatalf("reload calls = %d, want 1", *h.reloaded)
	}

	err := h.client.MoveWindow(ctx, 7, 3)
	if client.Code(err) != control.CodeNotTracked {
		t.Fatalf("move untracked code = %d (%v), want %d", client.Code(err), err, control.CodeNotTracked)
	}
	err = h.client.MoveWindow(ctx, 7, 0)
	if client.Code(err) != control.CodeInvalidParams {
		t.Fatalf("bad workspace code = %d, want %d", client.Code(err), control.CodeInvalidParams)
	}
}

func TestDiagnosticReportSections(t *testing.T) {
	h := startServer(t)
	report, err := h.client.Report(context.Background(), true, true, true)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Validation == nil {
		t.Fatal("validation section missing")
	}
	if report.Validation.ConsistencyPercent != 100 {
		t.Fatalf("consistency = %v, want 100 for empty store", report.Validation.ConsistencyPercent)
	}

	slim, err := h.client.Report(context.Background(), false, false, false)
	if err != nil {
		t.Fatalf("slim report: %v", err)
	}
	if slim.Validation != nil || slim.Windows != nil || slim.Events != nil {
		t.Fatal("optional sections should be absent when not requested")
	}
}

func TestConnectionCarriesMultipleRequests(t *testing.T) {
	h := startServer(t)
	conn, err := net.Dial("unix", h.socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	for i := 0; i < 3; i++ {
		if err := enc.Encode(control.Request{Method: control.MethodHealthCheck}); err != nil {
			t.Fatalf("encode: %v", err)
		}
		var resp control.Response
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error != nil {
			t.Fatalf("unexpected error: %+v", resp.Error)
		}
	}

	if err := enc.Encode(control.Request{Method: "nonsense"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var resp control.Response
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != control.CodeMethodNotFound {
		t.Fatalf("response = %+v, want method-not-found", resp)
	}
}
