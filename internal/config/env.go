package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by the launcher.
const (
	EnvDev      = "LITESKILL_DEV"
	EnvPort     = "LITESKILL_PORT"
	EnvSidecar  = "LITESKILL_SIDECAR"
	EnvLogLevel = "LITESKILL_LOG_LEVEL"
	EnvConfig   = "LITESKILL_CONFIG"
)

// envSetter applies one environment value to the configuration.
type envSetter func(c *Config, value string) error

// envVar is one entry of envMapping. A lenient variable that fails to
// parse is skipped and recorded instead of failing the load.
type envVar struct {
	set     envSetter
	lenient bool
}

// envMapping maps environment variables to the settings they override.
var envMapping = map[string]envVar{
	EnvDev: {set: func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		c.Dev.Enabled = b
		return nil
	}},
	// Only dev mode reads the port, so a stale value must not stop a
	// production launch.
	EnvPort: {lenient: true, set: func(c *Config, v string) error {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		if !validPort(p) {
			return ErrInvalidValue
		}
		c.Dev.Port = p
		return nil
	}},
	EnvSidecar: {set: func(c *Config, v string) error {
		c.Sidecar.Command = v
		return nil
	}},
	EnvLogLevel: {set: func(c *Config, v string) error {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
}

// ApplyEnv overrides c with the launcher's environment variables. Unset
// and empty variables leave the setting unchanged. Unparsable lenient
// variables are left out and reported by IgnoredEnv.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for name, ev := range envMapping {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(c, v); err != nil {
			envErr := &EnvError{Name: name, Value: v, Err: err}
			if ev.lenient {
				c.ignoredEnv = append(c.ignoredEnv, envErr)
				continue
			}
			return envErr
		}
	}
	return nil
}

// IgnoredEnv returns the environment variables ApplyEnv skipped because
// their values were invalid.
func (c *Config) IgnoredEnv() []*EnvError {
	return c.ignoredEnv
}

// PathFromEnv returns the config file named by LITESKILL_CONFIG, falling
// back to DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultPath()
}
