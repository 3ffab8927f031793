package viewerctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"meshview/internal/logging"
)

var (
	// ErrConnect wraps every failure to establish a viewer connection.
	ErrConnect = errors.New("connect to viewer")
	// ErrViewerStart means a viewer was expected to come up but never accepted.
	ErrViewerStart = errors.New("viewer did not start")
)

// State is a step of connection establishment.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateLaunching
	StateRetrying
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateLaunching:
		return "launching_subprocess"
	case StateRetrying:
		return "retrying"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dialer opens a stream to the viewer. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Launcher starts a viewer process without waiting for it.
type Launcher interface {
	Launch(ctx context.Context) error
}

// Prober reports whether a viewer already holds the instance lock.
// instance.Endpoint satisfies it.
type Prober interface {
	Held() bool
}

// ConnectorOptions configure a Connector. Zero durations take the defaults.
type ConnectorOptions struct {
	Address        string
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
	BootDeadline   time.Duration

	Dialer   Dialer
	Launcher Launcher
	// Prober may be nil, in which case a failed first dial always launches.
	Prober Prober
	// Observer, when set, sees every state transition.
	Observer func(from, to State)
	Logger   *slog.Logger
}

const (
	DefaultAddress        = "localhost:6142"
	DefaultConnectTimeout = 50 * time.Millisecond
	DefaultRetryInterval  = 50 * time.Millisecond
	DefaultBootDeadline   = 5 * time.Second
)

// Connector runs the connect-or-launch sequence.
type Connector struct {
	opts   ConnectorOptions
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// NewConnector fills defaults into opts.
func NewConnector(opts ConnectorOptions) *Connector {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.BootDeadline <= 0 {
		opts.BootDeadline = DefaultBootDeadline
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	return &Connector{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "viewerctl"),
	}
}

// State returns the current step.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	if from == to {
		return
	}
	c.logger.Debug("connection state changed",
		logging.String("from", from.String()),
		logging.String("to", to.String()))
	if c.opts.Observer != nil {
		c.opts.Observer(from, to)
	}
}

// Connect dials the viewer, launching one if the first attempt fails and no
// viewer holds the instance lock. The launch happens at most once per call.
func (c *Connector) Connect(ctx context.Context) (net.Conn, error) {
	c.transition(StateConnecting)
	conn, err := c.dial(ctx, c.opts.ConnectTimeout)
	if err == nil {
		c.transition(StateConnected)
		return conn, nil
	}
	if ctx.Err() != nil {
		c.transition(StateFailed)
		return nil, fmt.Errorf("%w: %w", ErrConnect, ctx.Err())
	}
	firstErr := err

	if c.opts.Prober != nil && c.opts.Prober.Held() {
		c.logger.Debug("viewer lock held; waiting for it to accept",
			logging.String("address", c.opts.Address),
			logging.Error(firstErr))
	} else {
		if c.opts.Launcher == nil {
			c.transition(StateFailed)
			return nil, fmt.Errorf("%w %s: %w", ErrConnect, c.opts.Address, firstErr)
		}
		c.transition(StateLaunching)
		c.logger.Info("no viewer answering; launching one", logging.String("address", c.opts.Address))
		if err := c.opts.Launcher.Launch(ctx); err != nil {
			c.transition(StateFailed)
			return nil, fmt.Errorf("%w: %w: %w", ErrConnect, ErrViewerStart, err)
		}
	}

	c.transition(StateRetrying)
	deadline := time.Now().Add(c.opts.BootDeadline)
	lastErr := firstErr
	attempts := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := min(c.opts.RetryInterval, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.transition(StateFailed)
			return nil, fmt.Errorf("%w: %w", ErrConnect, ctx.Err())
		case <-timer.C:
		}

		attempts++
		conn, err := c.dial(ctx, min(c.opts.ConnectTimeout, max(time.Until(deadline), time.Millisecond)))
		if err == nil {
			c.transition(StateConnected)
			c.logger.Debug("viewer accepted", logging.Int("attempts", attempts))
			return conn, nil
		}
		lastErr = err
	}

	c.transition(StateFailed)
	return nil, fmt.Errorf("%w: %w within %s (%d attempts): %w",
		ErrConnect, ErrViewerStart, c.opts.BootDeadline, attempts, lastErr)
}

func (c *Connector) dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.opts.Dialer.DialContext(dialCtx, "tcp", c.opts.Address)
}
