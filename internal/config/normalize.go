package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeViewer(); err != nil {
		return err
	}
	c.normalizeClient()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	if err := c.normalizeState(); err != nil {
		return err
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizeViewer() error {
	if value, ok := os.LookupEnv("MESHVIEW_ADDRESS"); ok && strings.TrimSpace(value) != "" {
		c.Viewer.Address = value
	}
	c.Viewer.Address = strings.TrimSpace(c.Viewer.Address)
	if c.Viewer.Address == "" {
		c.Viewer.Address = defaultAddress
	}
	if strings.TrimSpace(c.Viewer.LockPath) == "" {
		c.Viewer.LockPath = defaultLockPath
	}
	var err error
	if c.Viewer.LockPath, err = expandPath(c.Viewer.LockPath); err != nil {
		return fmt.Errorf("viewer.lock_path: %w", err)
	}
	if c.Viewer.TickMillis == 0 {
		c.Viewer.TickMillis = defaultTickMillis
	}
	if exe := strings.TrimSpace(c.Viewer.Executable); exe != "" {
		if c.Viewer.Executable, err = expandPath(exe); err != nil {
			return fmt.Errorf("viewer.executable: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeClient() {
	if c.Client.ConnectTimeoutMillis == 0 {
		c.Client.ConnectTimeoutMillis = defaultConnectTimeoutMs
	}
	if c.Client.RetryIntervalMillis == 0 {
		c.Client.RetryIntervalMillis = defaultRetryIntervalMs
	}
	if c.Client.BootDeadlineSeconds == 0 {
		c.Client.BootDeadlineSeconds = defaultBootDeadlineSeconds
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeState() error {
	if strings.TrimSpace(c.State.Dir) == "" {
		c.State.Dir = defaultStateDir
	}
	var err error
	if c.State.Dir, err = expandPath(c.State.Dir); err != nil {
		return fmt.Errorf("state.dir: %w", err)
	}
	return nil
}
