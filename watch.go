package grove

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches rapid write events from editors into one reload.
const watchDebounce = 150 * time.Millisecond

// Watch reloads the engine whenever a template file under the engine's
// directory changes, until ctx is cancelled. It blocks; run it in a
// goroutine. After each reload OnReload receives the result, so callers
// can surface compile errors without stopping the watch.
//
// Only engines built with NewEngine can watch; an fs.FS has no change
// notification.
func (e *Engine) Watch(ctx context.Context) error {
	if e.dir == "" {
		return errors.New("watch requires a directory-backed engine")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, e.dir); err != nil {
		return err
	}

	log := logger(ctx)
	log.Debug("watching templates", "dir", e.dir)

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					// new subdirectory: watch it too
					if err := addRecursive(watcher, event.Name); err != nil {
						log.Debug("watch add failed", "dir", event.Name, "error", err)
					}
				}
			}
			if !e.watchedFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)
			pending = true

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			err := e.LoadContext(ctx)
			if err != nil {
				log.Error("template reload failed", "error", err)
			} else {
				log.Debug("templates reloaded")
			}
			if e.OnReload != nil {
				e.OnReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "error", err)
		}
	}
}

// watchedFile reports whether a changed path is a template the engine
// would load.
func (e *Engine) watchedFile(path string) bool {
	return slices.Contains(e.extensions, strings.ToLower(filepath.Ext(path)))
}

// addRecursive watches dir and every subdirectory under it.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
