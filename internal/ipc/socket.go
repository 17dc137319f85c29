package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
)

// i3 IPC message types.
const (
	msgRunCommand    = 0
	msgGetWorkspaces = 1
	msgSubscribe     = 2
	msgGetOutputs    = 3
	msgGetTree       = 4
	msgGetMarks      = 5
	msgSendTick      = 10
)

// Event replies carry the event id with the high bit set.
const (
	eventWorkspace = 0x80000000
	eventOutput    = 0x80000001
	eventWindow    = 0x80000003
	eventShutdown  = 0x80000006
	eventTick      = 0x80000007
)

var magic = [6]byte{'i', '3', '-', 'i', 'p', 'c'}

// SocketPath resolves the compositor IPC socket from the environment.
func SocketPath() (string, error) {
	if path := os.Getenv("SWAYSOCK"); path != "" {
		return path, nil
	}
	if path := os.Getenv("I3SOCK"); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("neither SWAYSOCK nor I3SOCK is set")
}

type message struct {
	Type    uint32
	Payload []byte
}

func writeMessage(w io.Writer, msgType uint32, payload []byte) error {
	header := make([]byte, 14)
	copy(header, magic[:])
	binary.LittleEndian.PutUint32(header[6:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[10:], msgType)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}

func readMessage(r io.Reader) (message, error) {
	header := make([]byte, 14)
	if _, err := io.ReadFull(r, header); err != nil {
		return message{}, err
	}
	var got [6]byte
	copy(got[:], header[:6])
	if got != magic {
		return message{}, fmt.Errorf("bad magic %q", got)
	}
	length := binary.LittleEndian.Uint32(header[6:10])
	msg := message{Type: binary.LittleEndian.Uint32(header[10:14])}
	if length > 0 {
		msg.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return message{}, fmt.Errorf("read payload: %w", err)
		}
	}
	return msg, nil
}

// roundTrip sends one request on a fresh connection and reads its reply.
// Event frames cannot interleave because the connection never subscribed.
func roundTrip(conn net.Conn, msgType uint32, payload []byte) ([]byte, error) {
	if err := writeMessage(conn, msgType, payload); err != nil {
		return nil, err
	}
	reply, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if reply.Type != msgType {
		return nil, fmt.Errorf("reply type %d for request %d", reply.Type, msgType)
	}
	return reply.Payload, nil
}

func subscribePayload(classes []string) ([]byte, error) {
	return json.Marshal(classes)
}
