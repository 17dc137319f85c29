// Package control hosts the diagnostic socket: a newline-delimited
// request/response protocol for introspecting the daemon.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SocketFileName is the control socket filename within the runtime dir.
	SocketFileName = "swayscoped.sock"

	// Method names supported by the control protocol.
	MethodHealthCheck      = "health_check"
	MethodWindowIdentity   = "get_window_identity"
	MethodValidateState    = "validate_state"
	MethodRecentEvents     = "get_recent_events"
	MethodDiagnosticReport = "get_diagnostic_report"
	MethodNotifyLaunch     = "notify_launch"
	MethodLaunchStats      = "launch_stats"
	MethodReload           = "reload"
	MethodWindowClose      = "window_close"
	MethodWindowMove       = "window_move"
)

// Error codes. Callers branch on these, not on message text.
const (
	CodeMethodNotFound = 1
	CodeInvalidParams  = 2
	CodeWindowNotFound = 3
	CodeNotTracked     = 4
	CodeUpstreamFailed = 5
	CodeInternal       = 6
	CodeDebounced      = 7
)

// Request is one control call.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Error is the structured failure half of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("control error %d: %s", e.Code, e.Message)
}

// Response carries either a result or an error, never both.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// WindowParams addresses one window.
type WindowParams struct {
	WindowID int64 `json:"windowId"`
}

// MoveParams addresses a window and a target workspace.
type MoveParams struct {
	WindowID  int64 `json:"windowId"`
	Workspace int   `json:"workspace"`
}

// EventsParams bounds a recent-events query.
type EventsParams struct {
	Limit int    `json:"limit,omitempty"`
	Type  string `json:"type,omitempty"`
}

// ReportParams selects the optional report sections.
type ReportParams struct {
	IncludeWindows    bool `json:"includeWindows,omitempty"`
	IncludeEvents     bool `json:"includeEvents,omitempty"`
	IncludeValidation bool `json:"includeValidation,omitempty"`
}

// LaunchParams is a launch notification delivered over the socket.
type LaunchParams struct {
	App       string `json:"app"`
	Project   string `json:"project,omitempty"`
	Workspace int    `json:"workspace,omitempty"`
	PID       int    `json:"pid,omitempty"`
	Class     string `json:"class"`
}

// DefaultSocketPath returns the expected control socket location.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv("SWAYSCOPE_SOCKET"); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "swayscope", SocketFileName), nil
}
