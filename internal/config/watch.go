package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long Watch waits after the last event on the file before it reloads. A save
// made of a truncate and several writes is read once, after the last write.
const DefaultSettle = 100 * time.Millisecond

// Watch reloads the config file whenever it is written or replaced and hands every valid result to
// onChange. Invalid edits are reported to onError and otherwise ignored. The directory is watched rather
// than the file so editors that save by rename are picked up. Watch blocks until ctx is cancelled.
//
// A reload happens only once the file has been quiet for DefaultSettle, and is skipped when the file is
// empty or unchanged since the last config delivered.
//
// Parameters:
//   - ctx: the context whose cancellation stops the watcher
//   - path: the config file to watch
//   - onChange: called with each successfully reloaded config
//   - onError: called with load and watcher errors, may be nil
//
// Returns:
//   - error: an error if the watcher could not be started
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	return watchFile(ctx, path, DefaultSettle, nil, onChange, onError)
}

// watchFile is Watch with an explicit settle delay. ready, if set, is called once the watch is
// registered.
func watchFile(ctx context.Context, path string, settle time.Duration, ready func(), onChange func(*Config), onError func(error)) error {
	if onError == nil {
		onError = func(error) {}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	// The content the running config came from. A missing file reads as empty.
	last, _ := os.ReadFile(abs)
	if ready != nil {
		ready()
	}

	settled := time.NewTimer(settle)
	settled.Stop()
	defer settled.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			settled.Reset(settle)
		case <-settled.C:
			data, err := os.ReadFile(abs)
			if err != nil {
				onError(err)
				continue
			}
			if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(data, last) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				onError(err)
				continue
			}
			last = data
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onError(err)
		}
	}
}
