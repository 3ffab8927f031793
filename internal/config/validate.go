package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateViewer(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.State.HistoryLimit < 0 {
		return errors.New("state.history_limit must be zero or positive")
	}
	if c.Metrics.Bind != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
			return fmt.Errorf("metrics.bind: %w", err)
		}
	}
	return nil
}

func (c *Config) validateViewer() error {
	if _, _, err := net.SplitHostPort(c.Viewer.Address); err != nil {
		return fmt.Errorf("viewer.address must be host:port: %w", err)
	}
	if c.Viewer.TickMillis < 0 {
		return errors.New("viewer.tick_ms must be positive")
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Client.ConnectTimeoutMillis < 0 {
		return errors.New("client.connect_timeout_ms must be positive")
	}
	if c.Client.RetryIntervalMillis < 0 {
		return errors.New("client.retry_interval_ms must be positive")
	}
	if c.Client.BootDeadlineSeconds < 0 {
		return errors.New("client.boot_deadline_seconds must be positive")
	}
	if c.Client.RequestTimeoutSeconds < 0 {
		return errors.New("client.request_timeout_seconds must be zero or positive")
	}
	if c.RetryInterval() >= c.BootDeadline() {
		return fmt.Errorf("client.retry_interval_ms (%d) must be shorter than the boot deadline", c.Client.RetryIntervalMillis)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
