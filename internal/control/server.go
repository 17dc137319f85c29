package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/swayscope/swayscope/internal/engine"
	"github.com/swayscope/swayscope/internal/launch"
	"github.com/swayscope/swayscope/internal/state"
	"github.com/swayscope/swayscope/internal/util"
)

// Server hosts the diagnostic socket. Connections are long-lived; each may
// carry any number of newline-delimited requests.
type Server struct {
	engine     *engine.Engine
	logger     *util.Logger
	reload     func(reason string) error
	socketPath string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server. An empty path selects the default runtime
// location.
func NewServer(eng *engine.Engine, logger *util.Logger, reload func(reason string) error, path string) (*Server, error) {
	if path == "" {
		var err error
		path, err = DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Server{
		engine:     eng,
		logger:     logger,
		reload:     reload,
		socketPath: path,
	}, nil
}

// SocketPath returns where the server listens.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve listens until the context is cancelled. Access control is the
// socket's file permissions.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.prepareSocket(); err != nil {
		return err
	}
	s.logger.Infof("control server listening on %s", s.socketPath)
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.accept(ctx)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, net.ErrClosed
	}
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Server) prepareSocket() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) cleanup() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("remove control socket: %v", err)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Debugf("control decode: %v", err)
			}
			return
		}
		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			if ctx.Err() == nil {
				s.logger.Warnf("control write: %v", err)
			}
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	result, rpcErr := s.call(ctx, req)
	if rpcErr != nil {
		return Response{Error: rpcErr}
	}
	return Response{Result: result}
}

func (s *Server) call(ctx context.Context, req Request) (any, *Error) {
	switch req.Method {
	case MethodHealthCheck:
		return s.engine.Health(), nil
	case MethodWindowIdentity:
		var params WindowParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		identity, err := s.engine.WindowIdentity(ctx, params.WindowID)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return identity, nil
	case MethodValidateState:
		validation, err := s.engine.ValidateState(ctx)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return validation, nil
	case MethodRecentEvents:
		var params EventsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return s.engine.RecentEvents(params.Limit, params.Type), nil
	case MethodDiagnosticReport:
		var params ReportParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		report, err := s.engine.DiagnosticReport(ctx, params.IncludeWindows, params.IncludeEvents, params.IncludeValidation)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return report, nil
	case MethodNotifyLaunch:
		var params LaunchParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if params.Class == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "class is required"}
		}
		registered := s.engine.NotifyLaunch(launch.PendingLaunch{
			App:           params.App,
			Project:       params.Project,
			Workspace:     params.Workspace,
			LauncherPID:   params.PID,
			ExpectedClass: params.Class,
		})
		return registered, nil
	case MethodLaunchStats:
		return s.engine.LaunchStats(), nil
	case MethodReload:
		if s.reload == nil {
			return nil, &Error{Code: CodeMethodNotFound, Message: "reload not supported"}
		}
		if err := s.reload("control request"); err != nil {
			return nil, &Error{Code: CodeInternal, Message: err.Error()}
		}
		return map[string]string{"status": "reloaded"}, nil
	case MethodWindowClose:
		var params WindowParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if err := s.engine.CloseWindow(ctx, params.WindowID); err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]string{"status": "closed"}, nil
	case MethodWindowMove:
		var params MoveParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if params.Workspace < 1 || params.Workspace > 9 {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("workspace %d out of range", params.Workspace)}
		}
		if err := s.engine.MoveWindow(ctx, params.WindowID, params.Workspace); err != nil {
			return nil, mapEngineError(err)
		}
		return map[string]string{"status": "moved"}, nil
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

func decodeParams(raw json.RawMessage, out any) *Error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

// mapEngineError translates engine failures into protocol codes.
func mapEngineError(err error) *Error {
	switch {
	case errors.Is(err, engine.ErrWindowNotFound):
		return &Error{Code: CodeWindowNotFound, Message: err.Error()}
	case errors.Is(err, state.ErrWindowNotTracked):
		return &Error{Code: CodeNotTracked, Message: err.Error()}
	case errors.Is(err, engine.ErrDebounced):
		return &Error{Code: CodeDebounced, Message: err.Error()}
	case isUpstreamError(err):
		return &Error{Code: CodeUpstreamFailed, Message: err.Error()}
	default:
		return &Error{Code: CodeInternal, Message: err.Error()}
	}
}

func isUpstreamError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connect ipc socket") || strings.Contains(msg, "query tree")
}
