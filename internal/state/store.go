// Package state persists variables captured while running launch scripts.
//
// Variables live in <app>/.launchkit/state.json under the "local" key, so a
// URL captured by the start script can be read back by other commands (or
// other processes) while the app is running:
//
//	{
//	  "local": {"url": "http://127.0.0.1:7860"},
//	  "updated_at": "2026-01-02T15:04:05Z"
//	}
//
// Writers serialize through an advisory lock file and replace the document
// atomically; readers never need the lock.
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// DirName is the per-app directory holding launcher state.
	DirName = ".launchkit"

	stateFileName = "state.json"

	// lockTimeout is how long a writer waits for the state lock.
	lockTimeout = 5 * time.Second
)

var (
	// ErrInvalidName is returned for variable names outside [A-Za-z0-9_-].
	ErrInvalidName = errors.New("invalid variable name")

	// ErrNotFound is returned by Get when the variable is not set.
	ErrNotFound = errors.New("variable not set")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store reads and writes launcher variables for one app.
type Store struct {
	dir string
}

// New returns a Store that keeps its state file in dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// ForApp returns the Store for the app rooted at appDir.
func ForApp(appDir string) *Store {
	return New(filepath.Join(appDir, DirName))
}

// Path returns the path of the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, stateFileName)
}

// Set stores value under name, replacing any previous value.
//
// Parameters:
//   - name: Variable name ([A-Za-z0-9_-]+)
//   - value: Value to store
//
// Returns:
//   - error: ErrInvalidName, or a lock/write error
func (s *Store) Set(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.update(func(doc []byte) ([]byte, error) {
		return sjson.SetBytes(doc, "local."+name, value)
	})
}

// Get returns the value stored under name, or ErrNotFound.
func (s *Store) Get(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	doc, err := s.read()
	if err != nil {
		return "", err
	}
	r := gjson.GetBytes(doc, "local."+name)
	if !r.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r.String(), nil
}

// All returns every stored variable.
func (s *Store) All() (map[string]string, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	gjson.GetBytes(doc, "local").ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out, nil
}

// UpdatedAt returns when the state file was last written, or the zero time
// if it has never been written.
func (s *Store) UpdatedAt() (time.Time, error) {
	doc, err := s.read()
	if err != nil {
		return time.Time{}, err
	}
	r := gjson.GetBytes(doc, "updated_at")
	if !r.Exists() {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, r.String())
}

// Delete removes name. Deleting a missing variable is not an error.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.update(func(doc []byte) ([]byte, error) {
		return sjson.DeleteBytes(doc, "local."+name)
	})
}

// Clear removes every variable.
func (s *Store) Clear() error {
	return s.update(func(doc []byte) ([]byte, error) {
		return sjson.DeleteBytes(doc, "local")
	})
}

// ValidName reports whether name can be used as a variable name.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

func checkName(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// read returns the state document, or an empty object if it does not exist.
func (s *Store) read() ([]byte, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse state: %s is not valid JSON", s.Path())
	}
	return data, nil
}

// update applies fn to the state document under the state lock and writes
// the result atomically.
func (s *Store) update(fn func([]byte) ([]byte, error)) error {
	lock, err := s.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc, err = fn(doc)
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	doc, err = sjson.SetBytes(doc, "updated_at", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	return atomicWriteFile(s.Path(), doc, 0o644)
}

// lock acquires the exclusive state lock. The caller must unlock it.
func (s *Store) lock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	lock := flock.New(s.Path() + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("timeout waiting for state lock")
	}
	return lock, nil
}

// atomicWriteFile writes data to a temp file next to path and renames it
// into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
