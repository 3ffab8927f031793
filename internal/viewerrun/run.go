package viewerrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"meshview/internal/bridge"
	"meshview/internal/config"
	"meshview/internal/instance"
	"meshview/internal/logging"
	"meshview/internal/metrics"
	"meshview/internal/scene"
	"meshview/internal/statestore"
	"meshview/internal/transport"
	"meshview/internal/wire"
)

// Options configures viewer process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Logger overrides the config-derived logger.
	Logger *slog.Logger
	// Renderer defaults to a headless scene.State.
	Renderer scene.Renderer
	// Ready is called with the bound address once producers can connect.
	Ready func(addr net.Addr)
}

const shutdownGrace = 2 * time.Second

// Run claims the viewer endpoint and serves producers until the context is
// canceled or SIGINT/SIGTERM arrives. The update loop runs on the calling
// goroutine.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessionID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		if lvl := strings.TrimSpace(opts.LogLevel); lvl != "" {
			cfg.Logging.Level = lvl
		}
		var err error
		logger, err = logging.NewFromConfig(cfg, sessionID)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	} else {
		logger = logger.With(logging.String(logging.FieldSessionID, sessionID))
	}
	logger = logging.NewComponentLogger(logger, "viewer")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	endpoint := instance.Endpoint{Address: cfg.Viewer.Address, LockPath: cfg.Viewer.LockPath}
	claim, err := endpoint.Claim(ctx)
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			logger.Info("another viewer is already running",
				logging.String(logging.FieldEventType, "viewer_already_running"),
				logging.String("address", cfg.Viewer.Address))
		}
		return err
	}
	defer func() {
		if err := claim.Release(); err != nil {
			logging.WarnWithContext(logger, "release viewer endpoint", "viewer_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a stale lock file may remain"),
				logging.String(logging.FieldErrorHint, "remove the lock file if the next start reports a running viewer"))
		}
	}()

	pidPath := pidFilePath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	renderer := opts.Renderer
	if renderer == nil {
		renderer = scene.NewState()
	}

	store := openStateStore(ctx, cfg, logger)
	if store != nil {
		defer store.Close()
		restoreView(ctx, store, renderer, logger)
	}

	rec := metrics.New()
	if bind := strings.TrimSpace(cfg.Metrics.Bind); bind != "" {
		metricsServer, err := metrics.Listen(bind, rec, logger)
		if err != nil {
			logging.WarnWithContext(logger, "metrics endpoint unavailable", "metrics_listen_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "metrics are not exported"),
				logging.String(logging.FieldErrorHint, "check metrics.bind for conflicts"))
		} else {
			metricsServer.Serve()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			}()
		}
	}

	b := bridge.New()
	defer b.Close()

	server, err := transport.NewServer(ctx, claim.Listener, b, logger, rec)
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	server.Serve()
	defer server.Close()

	logger.Info("viewer started",
		logging.String(logging.FieldEventType, "viewer_started"),
		logging.String("address", claim.Addr().String()),
		logging.Bool("state_store", store != nil))
	if opts.Ready != nil {
		opts.Ready(claim.Addr())
	}

	loop := scene.NewLoop(b, renderer, logger, scene.Options{
		Metrics: rec,
		OnViewChange: func(view wire.View) {
			saveView(ctx, store, cfg.State.HistoryLimit, sessionID, view, logger)
		},
	})
	runErr := loop.Run(ctx, cfg.TickInterval())

	// Persist with a fresh context; ctx is already done.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), shutdownGrace)
	saveView(saveCtx, store, cfg.State.HistoryLimit, sessionID, renderer.CurrentView(), logger)
	saveCancel()

	logger.Info("viewer shutting down", logging.String(logging.FieldEventType, "viewer_stopped"))
	return runErr
}

func openStateStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) *statestore.Store {
	if !cfg.State.Enabled {
		return nil
	}
	store, err := statestore.Open(ctx, cfg.StateDBPath())
	if err != nil {
		logging.WarnWithContext(logger, "view state store unavailable", "state_store_open_failed",
			logging.Error(err),
			logging.String("path", cfg.StateDBPath()),
			logging.String(logging.FieldImpact, "the camera will not be restored on the next start"),
			logging.String(logging.FieldErrorHint, "delete the state database or set state.enabled = false"))
		return nil
	}
	return store
}

func restoreView(ctx context.Context, store *statestore.Store, renderer scene.Renderer, logger *slog.Logger) {
	rec, ok, err := store.LastView(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "read last view", "state_restore_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "starting from the default camera"))
		return
	}
	if !ok {
		return
	}
	renderer.ApplyView(rec.View)
	logger.Debug("restored camera", logging.Any("position", rec.View.Position), logging.Any("look_at", rec.View.LookAt))
}

// saveView records view and trims the history to keep rows when keep > 0.
func saveView(ctx context.Context, store *statestore.Store, keep int, sessionID string, view wire.View, logger *slog.Logger) {
	if store == nil {
		return
	}
	if err := store.SaveView(ctx, sessionID, view); err != nil {
		logging.WarnWithContext(logger, "save view", "state_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the latest camera will not be restored"))
		return
	}
	if keep <= 0 {
		return
	}
	if _, err := store.Prune(ctx, keep); err != nil {
		logging.WarnWithContext(logger, "prune view history", "state_prune_failed",
			logging.Error(err),
			logging.Int("keep", keep),
			logging.String(logging.FieldImpact, "older views stay on disk until the next save"))
	}
}

func pidFilePath(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Viewer.LockPath) == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(cfg.Viewer.LockPath), "viewer.pid")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running viewer, or 0.
func ReadPID(cfg *config.Config) int {
	path := pidFilePath(cfg)
	if path == "" {
		return 0
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
