package ingest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"jammertime/internal/logger"
)

// debounce absorbs the burst of events an editor or exporter produces for
// a single save.
const debounce = 250 * time.Millisecond

// Watch calls onChange whenever one of paths is written or replaced. The
// parent directories are watched so that atomic renames are seen. It runs
// until ctx is cancelled.
func Watch(ctx context.Context, log *logger.Logger, paths []string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return err
		}
	}
	if log != nil {
		log.Infow("watching_inputs", "paths", paths)
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !wanted[abs] {
				continue
			}
			fire = time.After(debounce)

		case <-fire:
			fire = nil
			if log != nil {
				log.Infow("inputs_changed")
			}
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if log != nil {
				log.Errorw("watcher_error", "err", err)
			}
		}
	}
}
