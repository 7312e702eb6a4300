package wrapper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/wire"
)

// connReadTimeout bounds how long a connection may sit without sending
// its one request line.
const connReadTimeout = 30 * time.Second

// Handler answers one decoded control request.
type Handler interface {
	Handle(ctx context.Context, req wire.Request) wire.Response
}

// Server accepts control connections on the instance's Unix socket.
// The protocol is one newline-delimited JSON request and one response
// per connection.
type Server struct {
	path    string
	handler Handler

	mu     sync.Mutex
	ln     net.Listener
	closed bool
	wg     sync.WaitGroup
}

// NewServer builds a server for the given socket path.
func NewServer(path string, handler Handler) *Server {
	return &Server{path: path, handler: handler}
}

// Path returns the socket location.
func (s *Server) Path() string {
	return s.path
}

// Start binds the socket and begins accepting. A socket file left by a
// crashed instance is unlinked first.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating socket dir: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log.Info(log.CatSock, "Control socket listening", "path", s.path)
	s.wg.Add(1)
	log.SafeGo("sock-accept", func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	})
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn(log.CatSock, "Accept failed", "error", err)
			continue
		}

		connID := uuid.New().String()[:8]
		s.wg.Add(1)
		log.SafeGo("sock-conn-"+connID, func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn, connID)
		})
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, connID string) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(connReadTimeout))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(bytes.TrimSpace(line)) == 0 {
		if !errors.Is(err, io.EOF) {
			log.Debug(log.CatSock, "Read failed", "conn", connID, "error", err)
		}
		return
	}

	var resp wire.Response
	req, derr := wire.DecodeRequest(bytes.TrimSpace(line))
	if derr != nil {
		resp = wire.ErrResponse(wire.AsError(derr))
	} else {
		log.Debug(log.CatSock, "Request", "conn", connID, "action", req.Action)
		resp = s.handler.Handle(ctx, req)
	}
	s.writeResponse(conn, resp, connID)
}

func (s *Server) writeResponse(conn net.Conn, resp wire.Response, connID string) {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(wire.ErrResponse(wire.Errorf(wire.CodeInternal, "encoding response")))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write(append(data, '\n')); err != nil {
		log.Debug(log.CatSock, "Write failed", "conn", connID, "error", err)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stop closes the listener, waits for in-flight connections, and
// unlinks the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.ln
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.path)
}
