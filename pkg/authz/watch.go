package authz

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchTable reloads the permission table into the resolver whenever
// the file changes, until ctx is cancelled. The watch is placed on the
// parent directory because editors and configmap mounts typically
// replace the file rather than write it in place.
//
// A reload that fails to parse or validate keeps the previous snapshot
// and logs the error.
func WatchTable(ctx context.Context, path string, resolver *StaticResolver, log *logrus.Logger) error {
	if log == nil {
		log = logrus.New()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create table watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()

		// Writes arrive as bursts of events; debounce so the table is
		// not parsed once per chunk.
		var pending <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)

			case <-pending:
				pending = nil
				reloadTable(path, resolver, log)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("permission table watcher error")
			}
		}
	}()

	return nil
}

func reloadTable(path string, resolver *StaticResolver, log *logrus.Logger) {
	table, err := LoadTable(path)
	if err != nil {
		log.WithError(err).WithField("path", path).
			Error("permission table reload failed, keeping previous table")
		return
	}
	resolver.SetTable(table)
	log.WithField("path", path).Info("permission table reloaded")
}
