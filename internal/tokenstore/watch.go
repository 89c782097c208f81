package tokenstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"supplydash/pkg/logging"
)

// ChangeKind describes what happened to the token file.
type ChangeKind int

const (
	ChangeWritten ChangeKind = iota
	ChangeRemoved
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "written"
}

// Watch reports changes to the token file made by anyone, including an
// operator copying a token in by hand, until ctx is cancelled. The directory
// is watched rather than the file because Save replaces the file by rename.
// onChange may be nil, in which case changes are only logged.
func (s *FileStore) Watch(ctx context.Context, onChange func(ChangeKind)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	logging.Info("TokenStore", "Watching %s for refresh token changes", target)

	go func() {
		defer watcher.Close()
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
				var kind ChangeKind
				switch {
				case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
					kind = ChangeWritten
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					kind = ChangeRemoved
				default:
					continue
				}
				logging.Info("TokenStore", "Refresh token file %s", kind)
				if onChange != nil {
					onChange(kind)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Error("TokenStore", err, "fsnotify error")
			}
		}
	}()
	return nil
}
