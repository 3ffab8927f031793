package testsupport

import (
	"path/filepath"
	"testing"

	"meshview/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The viewer binds an ephemeral loopback port and the state store is off
// unless WithStateStore is passed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Viewer.Address = "127.0.0.1:0"
	cfgVal.Viewer.LockPath = filepath.Join(base, "run", "viewer.lock")
	cfgVal.Viewer.TickMillis = 2
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"
	cfgVal.State.Enabled = false
	cfgVal.State.Dir = filepath.Join(base, "state")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithStateStore enables view persistence under the test directory.
func WithStateStore() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.State.Enabled = true
	}
}

// WithHistoryLimit enables view persistence and caps the saved history.
func WithHistoryLimit(keep int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.State.Enabled = true
		b.cfg.State.HistoryLimit = keep
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Logging.Dir)
}
