package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meshview/internal/logging"
)

// Router returns the exposition routes: /metrics and /healthz.
func (r *Recorder) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	return router
}

// Server exposes a Recorder over HTTP.
type Server struct {
	http     *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan struct{}
}

// Listen binds addr and prepares the exposition server.
func Listen(addr string, rec *Recorder, logger *slog.Logger) (*Server, error) {
	if rec == nil {
		return nil, errors.New("metrics server requires a recorder")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	return &Server{
		http: &http.Server{
			Handler:           rec.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logging.NewComponentLogger(logger, "metrics"),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the HTTP server in the background.
func (s *Server) Serve() {
	s.logger.Info("metrics endpoint listening", logging.String("bind", s.listener.Addr().String()))
	go func() {
		defer close(s.done)
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(s.logger, "metrics server stopped", "metrics_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "metrics are no longer exported"),
				logging.String(logging.FieldErrorHint, "check metrics.bind and restart the viewer"))
		}
	}()
}

// Shutdown stops the server, waiting up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	<-s.done
	return err
}
