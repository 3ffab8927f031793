package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"meshview/internal/config"
	"meshview/internal/logging"
	"meshview/internal/viewerctl"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if lvl := strings.TrimSpace(*c.logLevelFlag); lvl != "" {
				cfg.Logging.Level = lvl
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// launchConfigPath is handed to a launched viewer so it reads the same file.
func (c *commandContext) launchConfigPath() string {
	if c.configExists {
		return c.configPath
	}
	return ""
}

// cliLogger writes human-readable warnings to stderr.
func (c *commandContext) cliLogger() *slog.Logger {
	level := "warn"
	if c.config != nil && strings.EqualFold(c.config.Logging.Level, "debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console"})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withClient runs fn with a viewer client and closes it afterwards.
func (c *commandContext) withClient(fn func(*viewerctl.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client := viewerctl.NewClientFromConfig(cfg, c.launchConfigPath(), c.cliLogger())
	defer client.Close()
	return fn(client)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
