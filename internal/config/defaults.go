package config

const (
	defaultConfigPath          = "~/.config/meshview/config.toml"
	defaultAddress             = "localhost:6142"
	defaultLockPath            = "~/.local/share/meshview/viewer.lock"
	defaultTickMillis          = 16
	defaultConnectTimeoutMs    = 50
	defaultRetryIntervalMs     = 50
	defaultBootDeadlineSeconds = 5
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultLogDir              = "~/.local/share/meshview/logs"
	defaultStateDir            = "~/.local/share/meshview"
	defaultHistoryLimit        = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Viewer: Viewer{
			Address:    defaultAddress,
			LockPath:   defaultLockPath,
			TickMillis: defaultTickMillis,
		},
		Client: Client{
			ConnectTimeoutMillis: defaultConnectTimeoutMs,
			RetryIntervalMillis:  defaultRetryIntervalMs,
			BootDeadlineSeconds:  defaultBootDeadlineSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
		State: State{
			Enabled:      true,
			Dir:          defaultStateDir,
			HistoryLimit: defaultHistoryLimit,
		},
	}
}
