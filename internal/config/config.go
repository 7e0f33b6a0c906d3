package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
)

// Window host kinds.
const (
	HostTerminal = "terminal"
	HostBrowser  = "browser"
)

// DefaultSidecarName is the file name of the bundled sidecar executable,
// resolved next to the launcher binary.
const DefaultSidecarName = "desktop"

// Config is the complete launcher configuration.
type Config struct {
	Dev     DevConfig     `toml:"dev" yaml:"dev"`
	Sidecar SidecarConfig `toml:"sidecar" yaml:"sidecar"`
	Window  WindowConfig  `toml:"window" yaml:"window"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`

	ignoredEnv []*EnvError
}

// DevConfig controls development mode, where an externally started dev
// server is used instead of the bundled sidecar.
type DevConfig struct {
	Enabled      bool     `toml:"enabled" yaml:"enabled"`
	Port         int      `toml:"port" yaml:"port"`
	ReadyTimeout Duration `toml:"ready_timeout" yaml:"ready_timeout"`
}

// SidecarConfig describes the bundled server process.
type SidecarConfig struct {
	// Command is the executable path. Empty means DefaultSidecarName next
	// to the running launcher.
	Command string   `toml:"command" yaml:"command"`
	Args    []string `toml:"args" yaml:"args"`
	Dir     string   `toml:"dir" yaml:"dir"`
	// Env holds extra KEY=VALUE entries for the sidecar environment.
	Env []string `toml:"env" yaml:"env"`

	PreferredPorts  []int    `toml:"preferred_ports" yaml:"preferred_ports"`
	ReadyTimeout    Duration `toml:"ready_timeout" yaml:"ready_timeout"`
	ReadyPoll       Duration `toml:"ready_poll" yaml:"ready_poll"`
	GracefulTimeout Duration `toml:"graceful_timeout" yaml:"graceful_timeout"`
	ShutdownPoll    Duration `toml:"shutdown_poll" yaml:"shutdown_poll"`
}

// WindowConfig describes the main window.
type WindowConfig struct {
	Host      string `toml:"host" yaml:"host"`
	Width     int    `toml:"width" yaml:"width"`
	Height    int    `toml:"height" yaml:"height"`
	Resizable bool   `toml:"resizable" yaml:"resizable"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	// File is the rotating log file. Empty means the per-OS default; "-"
	// disables file output.
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

// Validate checks the configuration for values the launcher cannot use.
func (c *Config) Validate() error {
	var errs []error

	if !validPort(c.Dev.Port) {
		errs = append(errs, fieldError("dev.port", c.Dev.Port, "must be between 1 and 65535"))
	}
	if c.Dev.ReadyTimeout <= 0 {
		errs = append(errs, fieldError("dev.ready_timeout", c.Dev.ReadyTimeout, "must be positive"))
	}

	for _, p := range c.Sidecar.PreferredPorts {
		if !validPort(p) {
			errs = append(errs, fieldError("sidecar.preferred_ports", p, "must be between 1 and 65535"))
		}
	}
	durations := []struct {
		name string
		d    Duration
	}{
		{"sidecar.ready_timeout", c.Sidecar.ReadyTimeout},
		{"sidecar.ready_poll", c.Sidecar.ReadyPoll},
		{"sidecar.graceful_timeout", c.Sidecar.GracefulTimeout},
		{"sidecar.shutdown_poll", c.Sidecar.ShutdownPoll},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fieldError(d.name, d.d, "must be positive"))
		}
	}

	if !slices.Contains([]string{HostTerminal, HostBrowser}, c.Window.Host) {
		errs = append(errs, fieldError("window.host", c.Window.Host, "must be terminal or browser"))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fieldError("window.size", fmt.Sprintf("%dx%d", c.Window.Width, c.Window.Height), "must be positive"))
	}

	if _, ok := logLevels[c.Logging.Level]; !ok {
		errs = append(errs, fieldError("logging.level", c.Logging.Level, "must be debug, info, warn or error"))
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

// SidecarCommand returns the sidecar executable to launch.
func (c *Config) SidecarCommand() (string, error) {
	if c.Sidecar.Command != "" {
		return c.Sidecar.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating launcher executable: %w", err)
	}
	name := DefaultSidecarName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}

// LogFile returns the rotating log file path, or "" when file logging is
// disabled.
func (c *Config) LogFile() string {
	switch c.Logging.File {
	case "-":
		return ""
	case "":
		return filepath.Join(LogDir(), "liteskill-desktop.log")
	default:
		return c.Logging.File
	}
}

// LogDir returns the per-OS directory for launcher logs.
func LogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "liteskill", "logs")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "Liteskill")
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "Liteskill", "logs")
		}
		return filepath.Join(home, "AppData", "Local", "Liteskill", "logs")
	default:
		if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
			return filepath.Join(dir, "liteskill", "logs")
		}
		return filepath.Join(home, ".local", "state", "liteskill", "logs")
	}
}

var logLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
