// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reports edits to the config file while papertalk runs.
// Service specs are fixed for the run, so a change is announced and
// logged, never applied.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/papertalk/internal/events"
)

// ConfigWatcher publishes config.changed when the config file is written.
type ConfigWatcher struct {
	path      string
	bus       events.EventBus
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConfigWatcher starts watching path. The parent directory is watched
// so editors that replace the file by rename are still seen.
func NewConfigWatcher(path string, bus events.EventBus, debounce time.Duration, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &ConfigWatcher{
		path:      abs,
		bus:       bus,
		logger:    logger,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *ConfigWatcher) Path() string {
	return w.path
}

// Close stops the watcher. Safe to call more than once.
func (w *ConfigWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.debouncer.Stop()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *ConfigWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	// Chmod fires on touch and on some editors' saves without content changes.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.debouncer.Trigger(w.announce)
}

func (w *ConfigWatcher) announce() {
	payload := map[string]interface{}{"path": w.path}
	if info, err := os.Stat(w.path); err == nil {
		payload["mod_time"] = info.ModTime().Format(time.RFC3339)
	} else {
		payload["removed"] = true
	}

	w.logger.Warn("config file changed; restart papertalk to apply", "path", w.path)
	if w.bus != nil {
		_ = w.bus.Publish(context.Background(), events.Event{
			Type:    events.EventConfigChanged,
			Payload: payload,
		})
	}
}
