package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/liteskill/liteskill-desktop/internal/app"
	"github.com/liteskill/liteskill-desktop/internal/config"
	"github.com/liteskill/liteskill-desktop/internal/window"
)

type rootOptions struct {
	configPath string
	dev        bool
	port       int
	sidecar    string
	logLevel   string
	host       string
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "liteskill-desktop",
		Short:         "Liteskill desktop launcher",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			if code := launch(cmd.Context(), cfg, path, cmd.Flags().Changed("log-level")); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the config file (default $"+config.EnvConfig+" or the user config dir)")
	flags.BoolVar(&opts.dev, "dev", false, "connect to an already running dev server instead of starting the sidecar")
	flags.IntVar(&opts.port, "port", 0, "dev server port")
	flags.StringVar(&opts.sidecar, "sidecar", "", "path to the sidecar executable")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.host, "window", "", "window host: terminal or browser")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd(opts))

	return root
}

// resolveConfig loads the config file and environment, then applies the
// flags that were set explicitly.
func resolveConfig(flags *pflag.FlagSet, opts *rootOptions) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	if flags.Changed("dev") {
		cfg.Dev.Enabled = opts.dev
	}
	if flags.Changed("port") {
		cfg.Dev.Port = opts.port
	}
	if flags.Changed("sidecar") {
		cfg.Sidecar.Command = opts.sidecar
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("window") {
		cfg.Window.Host = opts.host
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// launch wires the logger, window host and coordinator and runs them.
func launch(ctx context.Context, cfg *config.Config, path string, levelPinned bool) int {
	logCfg := app.LoggerConfig{
		Level:      cfg.Logging.Level,
		Console:    os.Stderr,
		File:       cfg.LogFile(),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}
	// The terminal host owns the screen; console logs would corrupt it.
	if cfg.Window.Host == config.HostTerminal {
		logCfg.Console = nil
	}
	logs, err := app.NewLogger(logCfg)
	if err != nil {
		window.WriterDialog{W: os.Stderr}.ShowError(app.DialogTitle, err.Error())
		return 1
	}
	defer logs.Close()

	logger := logs.Logger.With(zap.String("launch", uuid.NewString()))
	logger.Info("starting liteskill desktop",
		zap.String("version", version),
		zap.Bool("dev", cfg.Dev.Enabled),
		zap.String("config", path),
		zap.String("window", cfg.Window.Host))
	for _, ignored := range cfg.IgnoredEnv() {
		logger.Warn("ignoring invalid environment variable", zap.String("name", ignored.Name), zap.Error(ignored))
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if path != "" && !levelPinned {
		watchLogLevel(watchCtx, path, logs, logger)
	}

	host, dialog := newHost(cfg, logger)
	application, err := app.New(cfg,
		app.WithHost(host),
		app.WithDialog(dialog),
		app.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		dialog.ShowError(app.DialogTitle, err.Error())
		return 1
	}
	return application.Run(ctx)
}

// newHost builds the configured window host. The terminal host falls back
// to the browser host when no terminal is available.
func newHost(cfg *config.Config, logger *zap.Logger) (window.Host, window.Dialog) {
	wlog := logger.With(zap.String("component", "window"))
	opener := window.SystemOpener{}

	if cfg.Window.Host == config.HostTerminal {
		term, err := window.NewTerminal(window.WithLogger(wlog), window.WithOpener(opener))
		if err == nil {
			return term, term
		}
		logger.Warn("terminal unavailable, using system browser", zap.Error(err))
	}
	return window.NewBrowser(opener, wlog), window.WriterDialog{W: os.Stderr}
}

// watchLogLevel applies logging.level from the config file whenever the
// file changes.
func watchLogLevel(ctx context.Context, path string, logs *app.Logging, logger *zap.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		if err := logs.SetLevel(cfg.Logging.Level); err != nil {
			logger.Warn("invalid log level in config", zap.Error(err))
			return
		}
		logger.Info("log level updated", zap.String("level", cfg.Logging.Level))
	})
	if err != nil {
		logger.Warn("config watch unavailable", zap.String("path", path), zap.Error(err))
	}
}
