package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLogLevel parses a level name. "warning" is accepted for warn.
func ParseLogLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// LoggerConfig configures the launcher logger.
type LoggerConfig struct {
	// Level is the minimum level to output.
	Level string
	// Console receives human-readable logs. Nil disables console output.
	Console io.Writer
	// File is the rotating JSON log file. Empty disables file output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      "info",
		Console:    os.Stderr,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

// Logging is the root logger with its adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel

	file *lumberjack.Logger
}

// NewLogger builds the root logger. The level can be changed later through
// SetLevel without rebuilding the logger.
func NewLogger(cfg LoggerConfig) (*Logging, error) {
	lvl, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	var cores []zapcore.Core
	if cfg.Console != nil {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.AddSync(cfg.Console),
			level,
		))
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		enc := zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), level))
	}

	if len(cores) == 0 {
		return &Logging{Logger: zap.NewNop(), Level: level}, nil
	}
	return &Logging{
		Logger: zap.New(zapcore.NewTee(cores...)),
		Level:  level,
		file:   file,
	}, nil
}

// SetLevel changes the level of every logger derived from l.
func (l *Logging) SetLevel(s string) error {
	lvl, err := ParseLogLevel(s)
	if err != nil {
		return err
	}
	l.Level.SetLevel(lvl)
	return nil
}

// Close flushes buffered entries and closes the log file.
func (l *Logging) Close() error {
	_ = l.Logger.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
