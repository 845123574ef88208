package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdelaire/openbot/core/message"
)

// ReloadFunc rebuilds the command set and returns its size.
type ReloadFunc func() (int, error)

// Server is the local control socket. It lets scripts on the host send
// messages through a gateway and trigger a command reload.
type Server struct {
	socketPath string
	gateways   *Gateways
	reload     ReloadFunc
	listener   net.Listener
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewServer creates a control socket server. reload may be nil, in which
// case reload requests are refused.
func NewServer(socketPath string, gateways *Gateways, reload ReloadFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		gateways:   gateways,
		reload:     reload,
		logger:     logger,
	}
}

// Start begins listening. It cleans up stale sockets, creates the directory
// with 0700 permissions, and sets the socket to 0600.
func (s *Server) Start(ctx context.Context) error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("another instance is already listening on %s", s.socketPath)
		}
		s.logger.Info("removing stale socket", "path", s.socketPath)
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.listener = ln
	s.logger.Info("control socket listening", "path", s.socketPath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Shutdown stops the server and waits for in-flight connections.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept error", "error", err)
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := io.ReadAll(io.LimitReader(conn, MaxPayloadBytes+1))
	if err != nil {
		s.writeResponse(conn, Response{Error: "read error"})
		return
	}

	req, err := ValidateRequest(data)
	if err != nil {
		s.logger.Warn("invalid control request", "error", err)
		s.writeResponse(conn, Response{Error: err.Error()})
		return
	}

	switch req.Action {
	case ActionSend:
		s.writeResponse(conn, s.handleSend(ctx, req))
	case ActionReload:
		s.writeResponse(conn, s.handleReload())
	}
}

func (s *Server) handleSend(ctx context.Context, req *Request) Response {
	payload, err := ParseSendPayload(req.Payload)
	if err != nil {
		return Response{Error: err.Error()}
	}

	gw, err := s.gateways.Get(payload.Gateway)
	if err != nil {
		s.logger.Error("no gateway for control send", "gateway", payload.Gateway, "error", err)
		return Response{Error: "no gateway configured"}
	}

	id := uuid.NewString()
	if _, err := gw.Send(ctx, payload.ChatID, message.Content{Text: payload.Text}); err != nil {
		s.logger.Error("control send failed", "id", id, "gateway", gw.Name(), "error", err)
		return Response{Error: "delivery failed"}
	}

	s.logger.Info("control message sent", "id", id, "gateway", gw.Name(), "chat_id", payload.ChatID)
	return Response{OK: true, ID: id}
}

func (s *Server) handleReload() Response {
	if s.reload == nil {
		return Response{Error: "reload not configured"}
	}
	n, err := s.reload()
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{OK: true, ID: uuid.NewString(), Commands: n}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	json.NewEncoder(conn).Encode(resp)
}
