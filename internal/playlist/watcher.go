package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the store when the playlist file is changed by something
// other than this process, e.g. an operator editing content-data.json.
// Our own writes reload to the same items and do not fire onChange.
type Watcher struct {
	store    *Store
	path     string
	onChange func(ctx context.Context)
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// NewWatcher watches the directory holding path, since atomic renames
// replace the file's inode and would drop a watch on the file itself.
func NewWatcher(store *Store, path string, onChange func(ctx context.Context), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		store:    store,
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		fs:       fsw,
	}, nil
}

// Run handles events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.isDocumentEvent(event) {
				continue
			}
			w.handle(ctx)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("playlist watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) isDocumentEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) handle(ctx context.Context) {
	changed, err := w.store.Reload(ctx)
	if err != nil {
		w.logger.Warn("could not reload playlist after file change",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	if !changed {
		return
	}

	w.logger.Info("playlist file changed on disk, reloaded", slog.String("path", w.path))
	if w.onChange != nil {
		w.onChange(ctx)
	}
}
