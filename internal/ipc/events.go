package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/swayscope/swayscope/internal/util"
)

// EventClasses are the upstream event categories the daemon subscribes to.
// All of them must acknowledge before the stream is considered live.
var EventClasses = []string{"window", "workspace", "output", "tick"}

// Event is one decoded entry of the upstream event stream.
type Event interface {
	EventKind() string
}

// WindowEvent reports a window lifecycle change (new, close, focus, move,
// title, mark, floating, urgent).
type WindowEvent struct {
	Change    string `json:"change"`
	Container Node   `json:"container"`
}

func (WindowEvent) EventKind() string { return "window" }

// WorkspaceEvent reports a workspace change (init, empty, focus, move,
// rename, urgent, reload).
type WorkspaceEvent struct {
	Change  string `json:"change"`
	Current *Node  `json:"current"`
	Old     *Node  `json:"old"`
}

func (WorkspaceEvent) EventKind() string { return "workspace" }

// OutputEvent reports that output topology changed. Sway only reports
// "unspecified"; the concrete delta has to be re-queried and diffed.
type OutputEvent struct {
	Change string `json:"change"`
}

func (OutputEvent) EventKind() string { return "output" }

// TickEvent carries an opaque payload broadcast via send_tick.
type TickEvent struct {
	First   bool   `json:"first"`
	Payload string `json:"payload"`
}

func (TickEvent) EventKind() string { return "tick" }

// ShutdownEvent reports that the compositor is exiting or restarting.
type ShutdownEvent struct {
	Change string `json:"change"`
}

func (ShutdownEvent) EventKind() string { return "shutdown" }

// Subscribe opens a dedicated event connection, registers every event class
// one at a time so each acknowledgement can be verified, and streams decoded
// events until context cancellation. The channel closes when the connection
// drops.
func Subscribe(ctx context.Context, logger *util.Logger) (<-chan Event, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return SubscribeAt(ctx, logger, path)
}

// SubscribeAt is Subscribe against an explicit socket path.
func SubscribeAt(ctx context.Context, logger *util.Logger, path string) (<-chan Event, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect event socket: %w", err)
	}
	classes := append(append([]string(nil), EventClasses...), "shutdown")
	var pending []message
	for _, class := range classes {
		buffered, err := subscribeClass(conn, class)
		if err != nil {
			conn.Close()
			return nil, err
		}
		pending = append(pending, buffered...)
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		defer conn.Close()
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
		for _, msg := range pending {
			ev, err := decodeEvent(msg)
			if err != nil || ev == nil {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		for {
			msg, err := readMessage(conn)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("event stream error: %v", err)
				}
				return
			}
			ev, err := decodeEvent(msg)
			if err != nil {
				logger.Warnf("drop undecodable event type %#x: %v", msg.Type, err)
				continue
			}
			if ev == nil {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// subscribeClass registers one event class and waits for its acknowledgement.
// Events from classes registered earlier may arrive before the reply; they
// are buffered and handed back so no event is lost during the handshake.
func subscribeClass(conn net.Conn, class string) ([]message, error) {
	payload, err := subscribePayload([]string{class})
	if err != nil {
		return nil, err
	}
	if err := writeMessage(conn, msgSubscribe, payload); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", class, err)
	}
	var buffered []message
	for {
		msg, err := readMessage(conn)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", class, err)
		}
		if msg.Type&0x80000000 != 0 {
			buffered = append(buffered, msg)
			continue
		}
		if msg.Type != msgSubscribe {
			return nil, fmt.Errorf("subscribe %s: unexpected reply type %d", class, msg.Type)
		}
		var result struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			return nil, fmt.Errorf("subscribe %s: decode reply: %w", class, err)
		}
		if !result.Success {
			return nil, fmt.Errorf("subscribe %s: refused", class)
		}
		return buffered, nil
	}
}

func decodeEvent(msg message) (Event, error) {
	switch msg.Type {
	case eventWindow:
		var ev WindowEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventWorkspace:
		var ev WorkspaceEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventOutput:
		var ev OutputEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventTick:
		var ev TickEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventShutdown:
		var ev ShutdownEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, nil
	}
}
