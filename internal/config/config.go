package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Viewer contains the viewer endpoint and process settings.
type Viewer struct {
	Address    string `toml:"address"`
	LockPath   string `toml:"lock_path"`
	TickMillis int    `toml:"tick_ms"`
	Executable string `toml:"executable"`
}

// Client contains connection establishment timing used by producers.
type Client struct {
	ConnectTimeoutMillis  int `toml:"connect_timeout_ms"`
	RetryIntervalMillis   int `toml:"retry_interval_ms"`
	BootDeadlineSeconds   int `toml:"boot_deadline_seconds"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// State controls persistence of the camera view between viewer runs.
type State struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	// HistoryLimit caps the saved views kept on disk. Zero keeps all.
	HistoryLimit int `toml:"history_limit"`
}

// Metrics controls the optional Prometheus exposition endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for meshview.
type Config struct {
	Viewer  Viewer  `toml:"viewer"`
	Client  Client  `toml:"client"`
	Logging Logging `toml:"logging"`
	State   State   `toml:"state"`
	Metrics Metrics `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("meshview.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the viewer writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Viewer.LockPath), c.Logging.Dir}
	if c.State.Enabled {
		dirs = append(dirs, c.State.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ConnectTimeout is the budget for a single direct dial attempt.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Client.ConnectTimeoutMillis) * time.Millisecond
}

// RetryInterval is the pause between dial attempts while a viewer boots.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Client.RetryIntervalMillis) * time.Millisecond
}

// BootDeadline bounds how long a client waits for a launched viewer.
func (c *Config) BootDeadline() time.Duration {
	return time.Duration(c.Client.BootDeadlineSeconds) * time.Second
}

// RequestTimeout is zero unless a round-trip timeout was configured.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeoutSeconds) * time.Second
}

// TickInterval is the update loop cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Viewer.TickMillis) * time.Millisecond
}

// StateDBPath is the SQLite file holding persisted views.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.State.Dir, "state.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
