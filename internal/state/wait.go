package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// WaitFor blocks until name is set and returns its value. It returns
// immediately if the variable already exists.
//
// Parameters:
//   - ctx: Bounds the wait
//   - name: Variable name
//
// Returns:
//   - string: The variable's value
//   - error: ctx.Err() on cancellation, or a watch/read error
func (s *Store) WaitFor(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("failed to watch state: %w", err)
	}
	defer w.Close()

	// The state file is replaced by rename, so watch the directory.
	if err := w.Add(s.dir); err != nil {
		return "", fmt.Errorf("failed to watch state: %w", err)
	}

	// Check only after the watch is registered so a concurrent write is not missed.
	if v, ok, err := s.lookup(name); err != nil || ok {
		return v, err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return "", errors.New("state watcher closed")
			}
			if filepath.Base(ev.Name) != stateFileName || !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if v, ok, err := s.lookup(name); err != nil || ok {
				return v, err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return "", errors.New("state watcher closed")
			}
			log.Debug("State watcher error", "error", err)
		}
	}
}

func (s *Store) lookup(name string) (string, bool, error) {
	v, err := s.Get(name)
	if err == nil {
		return v, true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	return "", false, err
}
