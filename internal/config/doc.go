// Package config provides the launcher configuration.
//
// Settings come from four layers, each overriding the one before:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file (Load, MergeFile)
//  3. LITESKILL_* environment variables (ApplyEnv)
//  4. Command-line flags, applied by the caller
//
// Durations are written as Go duration strings:
//
//	[sidecar]
//	preferred_ports = [4000, 3000, 5173]
//	ready_timeout = "120s"
//	graceful_timeout = "3s"
//
//	[logging]
//	level = "debug"
//
// Watch reloads the file when it changes so the log level can be adjusted
// without restarting the launcher.
package config
