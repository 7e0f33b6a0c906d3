package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the bursts of events editors produce on save.
const reloadDebounce = 100 * time.Millisecond

// ChangeFunc receives the reloaded configuration, or the error that
// prevented the reload.
type ChangeFunc func(cfg *Config, err error)

// Watch reloads the config file at path whenever it changes and passes the
// result to onChange. The file's directory is watched so that atomic
// replace-on-save is seen. Watch returns once the watch is established; the
// watch ends when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange ChangeFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go watchLoop(ctx, fsw, abs, onChange)
	return nil
}

func watchLoop(ctx context.Context, fsw *fsnotify.Watcher, path string, onChange ChangeFunc) {
	defer fsw.Close()

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDebounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			onChange(nil, err)

		case <-timer.C:
			onChange(Load(path))
		}
	}
}
