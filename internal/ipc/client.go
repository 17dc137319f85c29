package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

// defaultCommandTimeout bounds every outbound command; a compositor that
// fails to acknowledge within this window is treated as failed.
const defaultCommandTimeout = 500 * time.Millisecond

// Client issues queries and commands to the sway IPC socket. Each call uses
// its own connection so command traffic never interleaves with the long-lived
// event subscription.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient resolves the compositor socket from the environment.
func NewClient() (*Client, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return NewClientAt(path), nil
}

// NewClientAt returns a client bound to an explicit socket path.
func NewClientAt(path string) *Client {
	return &Client{path: path, timeout: defaultCommandTimeout}
}

func (c *Client) request(ctx context.Context, msgType uint32, payload []byte) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, fmt.Errorf("connect ipc socket: %w", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	return roundTrip(conn, msgType, payload)
}

// RunCommand sends one sway command and checks every result for success.
func (c *Client) RunCommand(ctx context.Context, command string) error {
	data, err := c.request(ctx, msgRunCommand, []byte(command))
	if err != nil {
		return fmt.Errorf("command %q: %w", command, err)
	}
	var results []CommandResult
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("decode command reply: %w", err)
	}
	for _, res := range results {
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = "rejected"
			}
			return fmt.Errorf("command %q: %s", command, msg)
		}
	}
	return nil
}

// GetWorkspaces returns all workspaces.
func (c *Client) GetWorkspaces(ctx context.Context) ([]Workspace, error) {
	data, err := c.request(ctx, msgGetWorkspaces, nil)
	if err != nil {
		return nil, err
	}
	var workspaces []Workspace
	if err := json.Unmarshal(data, &workspaces); err != nil {
		return nil, fmt.Errorf("decode workspaces: %w", err)
	}
	return workspaces, nil
}

// GetOutputs returns all outputs including inactive ones.
func (c *Client) GetOutputs(ctx context.Context) ([]Output, error) {
	data, err := c.request(ctx, msgGetOutputs, nil)
	if err != nil {
		return nil, err
	}
	var outputs []Output
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}
	return outputs, nil
}

// GetTree returns the full layout tree.
func (c *Client) GetTree(ctx context.Context) (*Node, error) {
	data, err := c.request(ctx, msgGetTree, nil)
	if err != nil {
		return nil, err
	}
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &root, nil
}

// GetMarks returns every mark currently assigned.
func (c *Client) GetMarks(ctx context.Context) ([]string, error) {
	data, err := c.request(ctx, msgGetMarks, nil)
	if err != nil {
		return nil, err
	}
	var marks []string
	if err := json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("decode marks: %w", err)
	}
	return marks, nil
}

// SendTick broadcasts a tick event to all subscribers.
func (c *Client) SendTick(ctx context.Context, payload string) error {
	data, err := c.request(ctx, msgSendTick, []byte(payload))
	if err != nil {
		return fmt.Errorf("send tick: %w", err)
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("decode tick reply: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("tick rejected")
	}
	return nil
}

// CriteriaCommand builds a command scoped to a window id, e.g.
// CriteriaCommand(12, "kill") -> `[con_id=12] kill`.
func CriteriaCommand(windowID int64, command string) string {
	return fmt.Sprintf("[con_id=%d] %s", windowID, command)
}

// MoveToWorkspace builds the placement command for a window.
func MoveToWorkspace(windowID int64, workspace int) string {
	return CriteriaCommand(windowID, fmt.Sprintf("move container to workspace number %d", workspace))
}

// AddMark builds the mark command for a window. Marks with spaces are not
// useful as criteria, so they are rejected up front.
func AddMark(windowID int64, mark string) (string, error) {
	if mark == "" || strings.ContainsAny(mark, " \t\n") {
		return "", fmt.Errorf("invalid mark %q", mark)
	}
	return CriteriaCommand(windowID, fmt.Sprintf("mark --add %s", mark)), nil
}

// MoveWorkspaceToOutput builds the workspace relocation command used when
// monitor roles are reassigned.
func MoveWorkspaceToOutput(workspace int, output string) string {
	return fmt.Sprintf("workspace number %d; move workspace to output %q", workspace, output)
}
