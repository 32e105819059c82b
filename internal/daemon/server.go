// Package daemon is the broker server: it accepts record-protocol
// connections, dispatches commands against the scheduler and exposes a
// small admin HTTP API.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"portage/internal/config"
	"portage/internal/logger"
	"portage/internal/model"
	"portage/internal/module"
	"portage/internal/record"
	"portage/internal/repository"
	"portage/internal/scheduler"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type handlerFunc func(w io.Writer, req *record.Record) *record.Record

type Server struct {
	cfg      *config.Config
	registry *module.Registry
	sched    *scheduler.Scheduler
	repo     *repository.AttemptRepository
	clock    *model.Clock

	instanceID string
	startedAt  time.Time

	ln       net.Listener
	admin    *echo.Echo
	handlers map[string]handlerFunc
	stopCh   chan struct{}
}

// New wires the server context. The repository may be nil when no
// database is configured.
func New(cfg *config.Config, registry *module.Registry, repo *repository.AttemptRepository) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		repo:       repo,
		clock:      model.NewClock(),
		instanceID: uuid.NewString(),
		startedAt:  time.Now(),
		stopCh:     make(chan struct{}, 1),
	}

	var recorder scheduler.AttemptRecorder
	if repo != nil {
		recorder = repo
	}
	s.sched = scheduler.New(cfg.MaxJobs, cfg.MaxAttempts, recorder)

	s.handlers = map[string]handlerFunc{
		"submit": s.handleSubmit,
		"q":      s.handleQuery,
		"list":   s.handleQuery,
		"rm":     s.handleRemove,
		"info":   s.handleInfo,
	}

	return s
}

// Start binds the listener, starts the worker pool, the accept loop
// and the admin API. A bind failure or an empty module registry is
// fatal to the caller.
func (s *Server) Start() error {
	if s.registry.Empty() {
		return errors.New("no transfer modules registered")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind listen socket: %w", err)
	}
	s.ln = ln

	s.sched.Start()
	go s.acceptLoop()
	s.startAdmin()

	logger.Log.Info("broker listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("instance", s.instanceID))

	return nil
}

// StopCh is signalled when a client asks the daemon to shut down.
func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) Stop(ctx context.Context) error {
	if s.ln != nil {
		_ = s.ln.Close()
	}

	s.sched.Stop()

	if s.admin != nil {
		return s.admin.Shutdown(ctx)
	}

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			logger.Log.Warn("accept failed", zap.Error(err))
			continue
		}

		go s.handleConn(conn)
	}
}

// handleConn reads request records off the connection until the stream
// ends. A malformed record closes the connection; everything else
// answers with a response record and keeps going.
func (s *Server) handleConn(conn net.Conn) {
	defer func(c net.Conn) {
		_ = c.Close()
	}(conn)

	logger.Log.Debug("client connected",
		zap.String("remote", conn.RemoteAddr().String()))

	br := bufio.NewReader(conn)
	for {
		req, err := record.Parse(br)
		if errors.Is(err, io.EOF) {
			logger.Log.Debug("client disconnected",
				zap.String("remote", conn.RemoteAddr().String()))
			return
		}
		if err != nil {
			logger.Log.Warn("malformed request, closing connection",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Error(err))
			return
		}

		res := s.dispatch(conn, req)
		if _, err := conn.Write(res.Bytes()); err != nil {
			logger.Log.Warn("failed to write response",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(w io.Writer, req *record.Record) *record.Record {
	cmd := req.Get("command")
	if cmd == "" {
		return record.Error("no command given")
	}
	req.Remove("command")

	handler, ok := s.handlers[cmd]
	if !ok {
		return record.Error("unsupported command '" + cmd + "'")
	}

	res := handler(w, req)
	if res == nil {
		res = record.Success()
	}

	return res
}
