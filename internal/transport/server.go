package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"meshview/internal/bridge"
	"meshview/internal/logging"
	"meshview/internal/metrics"
	"meshview/internal/wire"
)

// Server drains producer connections sequentially into a bridge.
type Server struct {
	listener net.Listener
	bridge   *bridge.Bridge
	logger   *slog.Logger
	metrics  *metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active net.Conn
}

// NewServer wraps an already-bound listener.
func NewServer(ctx context.Context, listener net.Listener, b *bridge.Bridge, logger *slog.Logger, rec *metrics.Recorder) (*Server, error) {
	if listener == nil {
		return nil, errors.New("transport server requires a listener")
	}
	if b == nil {
		return nil, errors.New("transport server requires a bridge")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		listener: listener,
		bridge:   b,
		logger:   logging.NewComponentLogger(logger, "transport"),
		metrics:  rec,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve starts the accept goroutine.
func (s *Server) Serve() {
	s.logger.Info("viewer listening", logging.String("address", s.listener.Addr().String()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "producers may fail to connect"),
					logging.String(logging.FieldErrorHint, "check the listen address and restart the viewer if this repeats"))
				continue
			}
			s.handle(conn)
			if s.ctx.Err() != nil {
				return
			}
		}
	}()
}

// Close stops accepting, drops the active connection and waits for the
// accept goroutine to exit. The listener is closed.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.mu.Lock()
	if s.active != nil {
		_ = s.active.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) handle(conn net.Conn) {
	connID := uuid.NewString()
	logger := s.logger.With(
		logging.String(logging.FieldConnID, connID),
		logging.String(logging.FieldRemote, conn.RemoteAddr().String()),
	)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.active = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	s.metrics.ConnectionAccepted()
	logger.Debug("producer connected")

	frames, err := s.drain(conn, logger)
	switch {
	case err == nil:
		logger.Debug("producer disconnected", logging.Int("frames", frames))
	case s.ctx.Err() != nil:
		logger.Debug("connection closed for shutdown", logging.Int("frames", frames))
	default:
		class := classify(err)
		s.metrics.ConnectionFailed(class)
		logging.WarnWithContext(logger, "connection dropped", "connection_failed",
			logging.Error(err),
			logging.String("failure_class", class),
			logging.Int("frames", frames),
			logging.String(logging.FieldImpact, "remaining frames from this producer were discarded"),
			logging.String(logging.FieldErrorHint, hintFor(class)))
	}
}

// drain reads frames until a clean EOF or an error, returning the number of
// messages delivered.
func (s *Server) drain(conn net.Conn, logger *slog.Logger) (int, error) {
	frames := 0
	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, err
		}
		frames++
		kind := msg.Kind().String()
		s.metrics.FrameReceived(kind)
		logger.Debug("message received", logging.String(logging.FieldMessageKind, kind))

		resp, ok, err := s.bridge.Deliver(s.ctx, msg)
		s.metrics.SetInboundDepth(s.bridge.Pending())
		if err != nil {
			return frames, &bridgeError{err: err}
		}
		if !ok {
			continue
		}
		if err := wire.WriteResponse(conn, resp); err != nil {
			return frames, err
		}
		s.metrics.ResponseSent(resp.Kind().String())
	}
}

type bridgeError struct{ err error }

func (e *bridgeError) Error() string { return fmt.Sprintf("bridge: %v", e.err) }

func (e *bridgeError) Unwrap() error { return e.err }

func classify(err error) string {
	var be *bridgeError
	switch {
	case errors.As(err, &be):
		return metrics.FailureBridge
	case errors.Is(err, wire.ErrFraming):
		return metrics.FailureFraming
	case errors.Is(err, wire.ErrDecode):
		return metrics.FailureDecode
	default:
		return metrics.FailureIO
	}
}

func hintFor(class string) string {
	switch class {
	case metrics.FailureFraming:
		return "producer closed mid-frame or sent an invalid length prefix"
	case metrics.FailureDecode:
		return "producer and viewer disagree on the message format; check versions"
	case metrics.FailureBridge:
		return "viewer is shutting down"
	default:
		return "check the producer process for crashes"
	}
}
