package config

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it changes and hands the new
// config to onChange. Invalid edits are logged and skipped. The directory is
// watched rather than the file so editors that replace the file are picked up.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *log.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = log.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				logger.Printf("warn: config reload %s: %v", abs, err)
				continue
			}
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("warn: config watcher: %v", err)
		}
	}
}
