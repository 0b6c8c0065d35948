package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// Watch subscribes to change notifications for the subtree below path.
// The callback receives the normalized path of each changed entry. Newly
// created directories are added to the watch as they appear, so the
// subscription stays recursive as the tree grows.
func (l *Local) Watch(path string, onChange func(changedPath string)) (func() error, error) {
	watchRoot := l.abs(util.NormalizePath(path))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	if err := fsw.Add(watchRoot); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", watchRoot, err)
	}

	// fsnotify watches are not recursive. Register every existing
	// subdirectory up front; new ones are picked up from Create events.
	walkErr := filepath.WalkDir(watchRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Inaccessible entries are skipped, not fatal.
		}
		if d.IsDir() && p != watchRoot {
			if addErr := fsw.Add(p); addErr != nil {
				plog.Warn("Failed to watch subdirectory", "path", p, "error", addErr)
			}
		}
		return nil
	})
	if walkErr != nil {
		plog.Warn("Error while registering watch subdirectories", "root", watchRoot, "error", walkErr)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				l.handleWatchEvent(fsw, watchRoot, event, onChange)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				plog.Warn("Filesystem watcher error", "root", watchRoot, "error", err)
			}
		}
	}()

	unsubscribe := func() error {
		err := fsw.Close()
		<-done
		return err
	}
	return unsubscribe, nil
}

func (l *Local) handleWatchEvent(fsw *fsnotify.Watcher, watchRoot string, event fsnotify.Event, onChange func(string)) {
	rel, err := filepath.Rel(l.root, event.Name)
	if err != nil {
		return
	}

	// A freshly created directory must join the watch before its own
	// children start changing.
	if event.Has(fsnotify.Create) {
		if info, statErr := os.Lstat(event.Name); statErr == nil && info.IsDir() {
			if addErr := fsw.Add(event.Name); addErr != nil {
				plog.Warn("Failed to watch new directory", "path", event.Name, "error", addErr)
			}
		}
	}

	onChange(util.NormalizePath(rel))
}
