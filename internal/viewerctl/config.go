package viewerctl

import (
	"log/slog"
	"net"

	"meshview/internal/config"
	"meshview/internal/instance"
)

// NewClientFromConfig builds a Client that dials cfg.Viewer.Address and
// launches this binary (or cfg.Viewer.Executable) with configPath when no
// viewer answers.
func NewClientFromConfig(cfg *config.Config, configPath string, logger *slog.Logger) *Client {
	endpoint := instance.Endpoint{Address: cfg.Viewer.Address, LockPath: cfg.Viewer.LockPath}
	connector := NewConnector(ConnectorOptions{
		Address:        cfg.Viewer.Address,
		ConnectTimeout: cfg.ConnectTimeout(),
		RetryInterval:  cfg.RetryInterval(),
		BootDeadline:   cfg.BootDeadline(),
		Dialer:         &net.Dialer{},
		Launcher:       ProcessLauncher{Executable: cfg.Viewer.Executable, ConfigPath: configPath},
		Prober:         endpoint,
		Logger:         logger,
	})
	return NewClient(connector, ClientOptions{
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})
}
