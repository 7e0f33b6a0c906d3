package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liteskill/liteskill-desktop/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desktop.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{config.EnvDev, config.EnvPort, config.EnvSidecar, config.EnvLogLevel, config.EnvConfig} {
		t.Setenv(name, "")
	}
}

func parse(t *testing.T, args ...string) (*rootOptions, *config.Config, error) {
	t.Helper()
	opts := &rootOptions{}
	root := newRootCmd(opts)
	if err := root.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	cfg, _, err := resolveConfig(root.Flags(), opts)
	return opts, cfg, err
}

func TestResolveConfig_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[dev]\nport = 3000\n\n[logging]\nlevel = \"error\"\n\n[window]\nhost = \"browser\"\n")

	// File over defaults.
	_, cfg, err := parse(t, "--config", path)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Dev.Port != 3000 || cfg.Logging.Level != "error" || cfg.Window.Host != config.HostBrowser {
		t.Errorf("file values not applied: %+v", cfg)
	}

	// Env over file.
	t.Setenv(config.EnvPort, "5173")
	t.Setenv(config.EnvLogLevel, "warn")
	_, cfg, err = parse(t, "--config", path)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Dev.Port != 5173 || cfg.Logging.Level != "warn" {
		t.Errorf("env values not applied: port=%d level=%s", cfg.Dev.Port, cfg.Logging.Level)
	}

	// Flags over env.
	_, cfg, err = parse(t, "--config", path, "--port", "8080", "--log-level", "debug", "--dev", "--window", "terminal", "--sidecar", "/opt/desktop")
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Dev.Port != 8080 || cfg.Logging.Level != "debug" || !cfg.Dev.Enabled {
		t.Errorf("flag values not applied: %+v", cfg.Dev)
	}
	if cfg.Window.Host != config.HostTerminal || cfg.Sidecar.Command != "/opt/desktop" {
		t.Errorf("flag values not applied: host=%s sidecar=%s", cfg.Window.Host, cfg.Sidecar.Command)
	}
}

func TestResolveConfig_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[dev]\nport = 3001\n")
	t.Setenv(config.EnvConfig, path)

	_, cfg, err := parse(t)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Dev.Port != 3001 {
		t.Errorf("Dev.Port = %d, config path from env ignored", cfg.Dev.Port)
	}
}

func TestResolveConfig_InvalidFlag(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "")

	if _, _, err := parse(t, "--config", path, "--window", "webview"); err == nil {
		t.Error("expected validation error for unknown window host")
	}
	if _, _, err := parse(t, "--config", path, "--port", "0"); err == nil {
		t.Error("expected validation error for port 0")
	}
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "liteskill-desktop dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigCmd(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[sidecar]\ngraceful_timeout = \"5s\"\n")

	tests := []struct {
		format string
		want   string
	}{
		{"toml", "graceful_timeout = "},
		{"yaml", "graceful_timeout: 5s"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			root := NewRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"config", "--config", path, "--format", tt.format})

			if err := root.Execute(); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if !strings.Contains(out.String(), "# source: "+path) {
				t.Errorf("missing source line:\n%s", out.String())
			}
			if !strings.Contains(out.String(), tt.want) || !strings.Contains(out.String(), "5s") {
				t.Errorf("output missing %q 5s:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestConfigCmd_UnknownFormat(t *testing.T) {
	clearEnv(t)
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", writeConfig(t, ""), "--format", "json"})

	if err := root.Execute(); !errors.Is(err, config.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExitError(t *testing.T) {
	err := error(&exitError{code: 1})
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 1 {
		t.Fatal("exitError not recoverable with errors.As")
	}
	if err.Error() != "exit status 1" {
		t.Errorf("Error() = %q", err.Error())
	}
}
