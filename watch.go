package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDelay is how long Watch waits after the last change before reloading.
var WatchDelay = 200 * time.Millisecond

// Watch reloads the file at path whenever it is written or replaced and
// passes every result to fn, including failed reloads. The directory is
// watched so editors that replace files atomically are seen. Watching stops
// when ctx is done; fn is never called concurrently with itself.
func (l *Loader[T]) Watch(ctx context.Context, path string, fn func(T, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: failed to create watcher: %w", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("settings: watch %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("settings: watch %s: %w", path, err)
	}
	l.log.Info().Str("file", target).Msg("watching settings file")
	go l.processEvents(ctx, watcher, target, fn)
	return nil
}

func (l *Loader[T]) processEvents(ctx context.Context, watcher *fsnotify.Watcher, target string, fn func(T, error)) {
	defer watcher.Close()
	var pending *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.log.Debug().Str("file", name).Str("op", event.Op.String()).Msg("settings file changed")
			if pending != nil {
				pending.Stop()
			}
			pending = time.NewTimer(WatchDelay)
			fire = pending.C

		case <-fire:
			fire = nil
			v, err := l.Load(ctx, FromFile(target))
			l.opt.Metrics.observeReload(err)
			if err != nil {
				l.log.Warn().Err(err).Str("file", target).Msg("settings reload failed")
			}
			fn(v, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.log.Warn().Err(err).Str("file", target).Msg("settings watcher error")
		}
	}
}
