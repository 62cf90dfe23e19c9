package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchFlag follows the offline flag file. The parent directory is watched
// so the file can be created and removed freely.
func (m *Monitor) watchFlag(ctx context.Context) error {
	path := filepath.Clean(m.cfg.FlagFile)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create flag directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	// The file may have changed before the watch was in place.
	m.setFlagged(ctx, FlagPresent(path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			m.logger.Debug("fsnotify event", "op", event.Op, "file", event.Name)
			m.setFlagged(ctx, FlagPresent(path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("fsnotify error", "error", err)
		}
	}
}

// SetFlag creates or removes the offline flag file.
func SetFlag(path string, offline bool) error {
	if !offline {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove offline flag: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create flag directory: %w", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("write offline flag: %w", err)
	}
	return nil
}
