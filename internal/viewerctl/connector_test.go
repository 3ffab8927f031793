package viewerctl_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meshview/internal/viewerctl"
)

// fakeDialer fails until up is set, then returns one end of a pipe.
type fakeDialer struct {
	up    atomic.Bool
	dials atomic.Int32
}

func (d *fakeDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.dials.Add(1)
	if !d.up.Load() {
		return nil, errors.New("connection refused")
	}
	client, _ := net.Pipe()
	return client, nil
}

// fakeLauncher brings the dialer up after a delay.
type fakeLauncher struct {
	dialer   *fakeDialer
	delay    time.Duration
	never    bool
	err      error
	launches atomic.Int32
}

func (l *fakeLauncher) Launch(context.Context) error {
	l.launches.Add(1)
	if l.err != nil {
		return l.err
	}
	if !l.never {
		time.AfterFunc(l.delay, func() { l.dialer.up.Store(true) })
	}
	return nil
}

type fixedProber bool

func (p fixedProber) Held() bool { return bool(p) }

func fastOptions(d viewerctl.Dialer, l viewerctl.Launcher) viewerctl.ConnectorOptions {
	return viewerctl.ConnectorOptions{
		Address:        "127.0.0.1:1",
		ConnectTimeout: 10 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
		BootDeadline:   300 * time.Millisecond,
		Dialer:         d,
		Launcher:       l,
	}
}

func TestConnectDirectSkipsLaunch(t *testing.T) {
	d := &fakeDialer{}
	d.up.Store(true)
	l := &fakeLauncher{dialer: d}
	conn, err := viewerctl.NewConnector(fastOptions(d, l)).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
	if l.launches.Load() != 0 {
		t.Fatalf("launched %d times, want 0", l.launches.Load())
	}
}

func TestConnectLaunchesOnceThenConnects(t *testing.T) {
	d := &fakeDialer{}
	l := &fakeLauncher{dialer: d, delay: 40 * time.Millisecond}

	var mu sync.Mutex
	var states []viewerctl.State
	opts := fastOptions(d, l)
	opts.Observer = func(_, to viewerctl.State) {
		mu.Lock()
		states = append(states, to)
		mu.Unlock()
	}
	c := viewerctl.NewConnector(opts)
	conn, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if got := l.launches.Load(); got != 1 {
		t.Fatalf("launched %d times, want 1", got)
	}
	if d.dials.Load() < 2 {
		t.Fatalf("expected retries after launch, got %d dials", d.dials.Load())
	}
	want := []viewerctl.State{
		viewerctl.StateConnecting,
		viewerctl.StateLaunching,
		viewerctl.StateRetrying,
		viewerctl.StateConnected,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
	if c.State() != viewerctl.StateConnected {
		t.Fatalf("final state = %s", c.State())
	}
}

func TestConnectDeadlineExceeded(t *testing.T) {
	d := &fakeDialer{}
	l := &fakeLauncher{dialer: d, never: true}
	c := viewerctl.NewConnector(fastOptions(d, l))

	start := time.Now()
	_, err := c.Connect(context.Background())
	elapsed := time.Since(start)
	if !errors.Is(err, viewerctl.ErrConnect) || !errors.Is(err, viewerctl.ErrViewerStart) {
		t.Fatalf("expected ErrConnect and ErrViewerStart, got %v", err)
	}
	if elapsed < 250*time.Millisecond {
		t.Fatalf("gave up after %s, before the boot deadline", elapsed)
	}
	if l.launches.Load() != 1 {
		t.Fatalf("launched %d times, want exactly 1", l.launches.Load())
	}
	if c.State() != viewerctl.StateFailed {
		t.Fatalf("state = %s, want failed", c.State())
	}
}

func TestConnectSkipsLaunchWhenLockHeld(t *testing.T) {
	d := &fakeDialer{}
	l := &fakeLauncher{dialer: d}
	opts := fastOptions(d, l)
	opts.Prober = fixedProber(true)
	time.AfterFunc(30*time.Millisecond, func() { d.up.Store(true) })

	conn, err := viewerctl.NewConnector(opts).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
	if l.launches.Load() != 0 {
		t.Fatal("must not launch while another viewer holds the lock")
	}
}

func TestConnectLaunchFailure(t *testing.T) {
	d := &fakeDialer{}
	l := &fakeLauncher{dialer: d, err: errors.New("no such file")}
	_, err := viewerctl.NewConnector(fastOptions(d, l)).Connect(context.Background())
	if !errors.Is(err, viewerctl.ErrConnect) || !errors.Is(err, viewerctl.ErrViewerStart) {
		t.Fatalf("expected wrapped launch failure, got %v", err)
	}
}

func TestConnectHonorsContext(t *testing.T) {
	d := &fakeDialer{}
	l := &fakeLauncher{dialer: d, never: true}
	opts := fastOptions(d, l)
	opts.BootDeadline = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := viewerctl.NewConnector(opts).Connect(ctx)
	if !errors.Is(err, viewerctl.ErrConnect) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestProcessLauncherArgs(t *testing.T) {
	l := viewerctl.ProcessLauncher{ConfigPath: "/tmp/meshview.toml"}
	args := l.Args()
	if len(args) != 3 || args[0] != "viewer" || args[1] != "--config" || args[2] != "/tmp/meshview.toml" {
		t.Fatalf("args = %v", args)
	}
	if got := (viewerctl.ProcessLauncher{}).Args(); len(got) != 1 {
		t.Fatalf("args without config = %v", got)
	}
}

func TestProcessLauncherRejectsMissingExecutable(t *testing.T) {
	l := viewerctl.ProcessLauncher{Executable: t.TempDir() + "/missing"}
	if err := l.Launch(context.Background()); err == nil {
		t.Fatal("expected error for missing executable")
	}
}
