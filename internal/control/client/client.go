// Package client talks to a running swayscoped over its control socket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/swayscope/swayscope/internal/control"
	"github.com/swayscope/swayscope/internal/engine"
	"github.com/swayscope/swayscope/internal/eventlog"
	"github.com/swayscope/swayscope/internal/launch"
)

// defaultTimeout is used when the caller provides no context deadline.
const defaultTimeout = 3 * time.Second

// Client issues control requests. Each call opens its own connection.
type Client struct {
	socketPath string
}

type (
	// Health mirrors the daemon's health payload.
	Health = engine.Health
	// Identity mirrors the window identity payload.
	Identity = engine.Identity
	// Validation mirrors the state validation payload.
	Validation = engine.Validation
	// Report mirrors the composite diagnostic report.
	Report = engine.Report
	// LaunchStats mirrors the launch correlation counters.
	LaunchStats = launch.Stats
	// PendingLaunch mirrors a registered launch record.
	PendingLaunch = launch.PendingLaunch
	// EventEntry mirrors one audit log record.
	EventEntry = eventlog.Entry
	// RPCError is the structured error returned by the daemon.
	RPCError = control.Error
)

// New creates a client for the given socket path, defaulting to the runtime
// location when empty.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Health retrieves the daemon's health summary.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	err := c.do(ctx, control.Request{Method: control.MethodHealthCheck}, &health)
	return health, err
}

// WindowIdentity retrieves a tracked window's record and classification.
func (c *Client) WindowIdentity(ctx context.Context, windowID int64) (Identity, error) {
	var identity Identity
	err := c.do(ctx, request(control.MethodWindowIdentity, control.WindowParams{WindowID: windowID}), &identity)
	return identity, err
}

// ValidateState asks the daemon to recompute its cache against upstream.
func (c *Client) ValidateState(ctx context.Context) (Validation, error) {
	var validation Validation
	err := c.do(ctx, control.Request{Method: control.MethodValidateState}, &validation)
	return validation, err
}

// RecentEvents retrieves the audit log tail.
func (c *Client) RecentEvents(ctx context.Context, limit int, typeFilter string) ([]EventEntry, error) {
	var entries []EventEntry
	err := c.do(ctx, request(control.MethodRecentEvents, control.EventsParams{Limit: limit, Type: typeFilter}), &entries)
	return entries, err
}

// Report retrieves the composite diagnostic report.
func (c *Client) Report(ctx context.Context, windows, events, validation bool) (Report, error) {
	var report Report
	err := c.do(ctx, request(control.MethodDiagnosticReport, control.ReportParams{
		IncludeWindows:    windows,
		IncludeEvents:     events,
		IncludeValidation: validation,
	}), &report)
	return report, err
}

// NotifyLaunch registers a launch notification over the socket.
func (c *Client) NotifyLaunch(ctx context.Context, params control.LaunchParams) (PendingLaunch, error) {
	var pending PendingLaunch
	err := c.do(ctx, request(control.MethodNotifyLaunch, params), &pending)
	return pending, err
}

// LaunchStats retrieves the launch correlation counters.
func (c *Client) LaunchStats(ctx context.Context) (LaunchStats, error) {
	var stats LaunchStats
	err := c.do(ctx, control.Request{Method: control.MethodLaunchStats}, &stats)
	return stats, err
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Method: control.MethodReload}, nil)
}

// CloseWindow asks the daemon to close a tracked window.
func (c *Client) CloseWindow(ctx context.Context, windowID int64) error {
	return c.do(ctx, request(control.MethodWindowClose, control.WindowParams{WindowID: windowID}), nil)
}

// MoveWindow asks the daemon to move a tracked window to a workspace.
func (c *Client) MoveWindow(ctx context.Context, windowID int64, workspace int) error {
	return c.do(ctx, request(control.MethodWindowMove, control.MoveParams{WindowID: windowID, Workspace: workspace}), nil)
}

func request(method string, params any) control.Request {
	raw, err := json.Marshal(params)
	if err != nil {
		// Param structs are all marshalable; this is unreachable in practice.
		raw = nil
	}
	return control.Request{Method: method, Params: raw}
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *control.Error  `json:"error"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// Code extracts the structured error code, or 0 for plain errors.
func Code(err error) int {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}
