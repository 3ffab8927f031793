package viewerctl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProcessLauncher starts "<Executable> viewer [--config path]" as a detached
// process with its standard streams on the null device.
type ProcessLauncher struct {
	// Executable defaults to the running binary.
	Executable string
	ConfigPath string
}

// Launch starts the viewer and returns without waiting for it.
func (l ProcessLauncher) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	exe := strings.TrimSpace(l.Executable)
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		exe = self
	}
	if err := unix.Access(exe, unix.X_OK); err != nil {
		return fmt.Errorf("viewer executable %s: %w", exe, err)
	}

	proc := exec.Command(exe, l.Args()...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch viewer: %w", err)
	}
	return proc.Process.Release()
}

// Args returns the command line passed to the viewer executable.
func (l ProcessLauncher) Args() []string {
	args := []string{"viewer"}
	if cfg := strings.TrimSpace(l.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	return args
}
