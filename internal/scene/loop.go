package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meshview/internal/bridge"
	"meshview/internal/logging"
	"meshview/internal/metrics"
	"meshview/internal/wire"
)

// DefaultTick is the loop cadence when none is configured.
const DefaultTick = 16 * time.Millisecond

// Options tune a Loop.
type Options struct {
	// Metrics may be nil.
	Metrics *metrics.Recorder
	// OnViewChange, when set, is called at most once per tick with the camera
	// after a tick that changed it.
	OnViewChange func(wire.View)
}

// Loop applies bridge messages to a Renderer.
type Loop struct {
	bridge   *bridge.Bridge
	renderer Renderer
	logger   *slog.Logger
	opts     Options
}

// NewLoop wires a renderer to the loop side of a bridge.
func NewLoop(b *bridge.Bridge, r Renderer, logger *slog.Logger, opts Options) *Loop {
	return &Loop{
		bridge:   b,
		renderer: r,
		logger:   logging.NewComponentLogger(logger, "scene"),
		opts:     opts,
	}
}

// Step handles at most one queued message. It reports whether a message was
// handled and whether it changed the camera.
func (l *Loop) Step() (handled, viewChanged bool, err error) {
	msg, ok := l.bridge.Poll()
	if !ok {
		return false, false, nil
	}
	switch m := wire.Canonical(msg).(type) {
	case wire.MeshMessage:
		return true, l.applyMesh(m.Mesh), nil
	case wire.SetViewMessage:
		l.renderer.ApplyView(m.View)
		l.logger.Debug("view set",
			logging.Any("position", m.View.Position),
			logging.Any("look_at", m.View.LookAt))
		return true, true, nil
	case wire.RequestViewMessage:
		if err := l.bridge.Respond(wire.GetViewResponse{View: l.renderer.CurrentView()}); err != nil {
			return true, false, fmt.Errorf("answer view request: %w", err)
		}
		return true, false, nil
	default:
		return true, false, fmt.Errorf("unhandled message %T", msg)
	}
}

// applyMesh reports whether the camera target moved.
func (l *Loop) applyMesh(mesh wire.Mesh) bool {
	if err := mesh.Validate(); err != nil {
		l.opts.Metrics.MeshRejected()
		logging.WarnWithContext(l.logger, "mesh rejected", "mesh_invalid",
			logging.Error(err),
			logging.Int("vertices", len(mesh.Vertices)),
			logging.Int("faces", len(mesh.Faces)),
			logging.String(logging.FieldImpact, "the previous mesh stays on screen"),
			logging.String(logging.FieldErrorHint, "check the producer's face indices and vertex values"))
		return false
	}
	l.renderer.ApplyMesh(mesh)
	l.opts.Metrics.MeshApplied()
	l.logger.Debug("mesh applied",
		logging.Int("vertices", len(mesh.Vertices)),
		logging.Int("faces", len(mesh.Faces)))

	center, ok := mesh.Centroid()
	if !ok {
		return false
	}
	view := l.renderer.CurrentView()
	view.LookAt = center
	l.renderer.ApplyView(view)
	return true
}

// Drain handles every message queued right now.
func (l *Loop) Drain() error {
	changed := false
	for {
		handled, viewChanged, err := l.Step()
		if err != nil {
			return err
		}
		if !handled {
			break
		}
		changed = changed || viewChanged
	}
	l.opts.Metrics.SetInboundDepth(l.bridge.Pending())
	if changed && l.opts.OnViewChange != nil {
		l.opts.OnViewChange(l.renderer.CurrentView())
	}
	return nil
}

// Run drains the bridge every tick until ctx ends. A protocol error from the
// bridge stops the loop.
func (l *Loop) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := l.Drain(); err != nil {
				logging.ErrorWithContext(l.logger, "update loop stopped", "update_loop_failed", logging.Error(err))
				return err
			}
		}
	}
}
