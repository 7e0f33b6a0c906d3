package config

import "time"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dev: DevConfig{
			Port:         4000,
			ReadyTimeout: Duration(10 * time.Second),
		},
		Sidecar: SidecarConfig{
			PreferredPorts:  []int{4000, 3000, 5173},
			ReadyTimeout:    Duration(120 * time.Second),
			ReadyPoll:       Duration(200 * time.Millisecond),
			GracefulTimeout: Duration(3 * time.Second),
			ShutdownPoll:    Duration(100 * time.Millisecond),
		},
		Window: WindowConfig{
			Host:      HostTerminal,
			Width:     1280,
			Height:    900,
			Resizable: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
