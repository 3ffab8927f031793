package instance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning means another viewer owns the lock or the address.
var ErrAlreadyRunning = errors.New("viewer already running")

const (
	claimWindow     = 250 * time.Millisecond
	claimRetryDelay = 25 * time.Millisecond
)

// Endpoint names where a viewer listens and which lock file guards it.
type Endpoint struct {
	Address  string
	LockPath string
}

// Claim is a held lock plus a bound listener.
type Claim struct {
	Listener net.Listener
	lock     *flock.Flock
}

// Claim takes the viewer lock and binds Address. Both must succeed; on any
// failure nothing is left held.
func (e Endpoint) Claim(ctx context.Context) (*Claim, error) {
	if strings.TrimSpace(e.Address) == "" {
		return nil, errors.New("instance: address is empty")
	}

	var lock *flock.Flock
	if e.LockPath != "" {
		if err := os.MkdirAll(filepath.Dir(e.LockPath), 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
		lock = flock.New(e.LockPath)
		lockCtx, cancel := context.WithTimeout(ctx, claimWindow)
		ok, err := lock.TryLockContext(lockCtx, claimRetryDelay)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire viewer lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: lock %s is held", ErrAlreadyRunning, e.LockPath)
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", e.Address)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s is in use", ErrAlreadyRunning, e.Address)
		}
		return nil, fmt.Errorf("bind %s: %w", e.Address, err)
	}
	return &Claim{Listener: listener, lock: lock}, nil
}

// Held reports whether some process holds the viewer lock exclusively. It
// probes with a shared lock and releases it immediately.
func (e Endpoint) Held() bool {
	if e.LockPath == "" {
		return false
	}
	if _, err := os.Stat(e.LockPath); err != nil {
		return false
	}
	probe := flock.New(e.LockPath)
	ok, err := probe.TryRLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}

// Addr returns the bound address.
func (c *Claim) Addr() net.Addr {
	return c.Listener.Addr()
}

// Release closes the listener and drops the lock.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Listener != nil {
		if err := c.Listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}
	if c.lock != nil {
		if err := c.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release viewer lock: %w", err))
		}
	}
	return errors.Join(errs...)
}
