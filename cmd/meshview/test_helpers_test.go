package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"meshview/internal/config"
	"meshview/internal/logging"
	"meshview/internal/testsupport"
	"meshview/internal/viewerrun"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	stop       func()
}

// setupCLITestEnv starts an in-process viewer and writes a config file that
// points producer commands at it. Launching is disabled so a lost viewer
// fails fast instead of re-executing the test binary.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MESHVIEW_ADDRESS", "")

	cfg := testsupport.NewConfig(t, testsupport.WithStateStore())
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- viewerrun.Run(ctx, cfg, viewerrun.Options{
			Logger: logging.NewNop(),
			Ready:  func(addr net.Addr) { ready <- addr },
		})
	}()

	select {
	case addr := <-ready:
		fileCfg := *cfg
		fileCfg.Viewer.Address = addr.String()
		fileCfg.Viewer.Executable = filepath.Join(testsupport.BaseDir(cfg), "no-such-viewer")
		fileCfg.Client.BootDeadlineSeconds = 1
		fileCfg.Client.ConnectTimeoutMillis = 500
		cfg = &fileCfg
	case err := <-errc:
		cancel()
		t.Fatalf("viewer exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("viewer never became ready")
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "meshview.toml")
	writeTestConfig(t, configPath, cfg)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("viewer: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("viewer did not stop")
		}
	}
	t.Cleanup(stop)
	return &cliTestEnv{cfg: cfg, configPath: configPath, stop: stop}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
