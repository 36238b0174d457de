// Package database persists the engine's durable state, registered
// repositories and installed packages, to a single JSON file that is
// rewritten whole on each change.
package database

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
)

// State is the durable shape serialised to data.db.
type State struct {
	Repositories map[string]manifest.SourcedRepository `json:"repositories"`
	Installed    map[string]manifest.InstalledPackage  `json:"installed"`
}

func newState() State {
	return State{
		Repositories: make(map[string]manifest.SourcedRepository),
		Installed:    make(map[string]manifest.InstalledPackage),
	}
}

// Database is the single in-process owner of State. All mutation goes
// through Update, which serialises callers with a mutex held only for the
// duration of the marshal+write+rename, never across network I/O.
type Database struct {
	mu    sync.Mutex
	path  string
	state State
}

// Open loads path if it exists, or starts from an empty State otherwise.
func Open(path string) (*Database, error) {
	db := &Database{path: path, state: newState()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, depserrors.DatabaseIoError{Path: path, Cause: err}
	}
	if len(data) == 0 {
		return db, nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, depserrors.DatabaseParseError{Path: path, Cause: err}
	}
	if s.Repositories == nil {
		s.Repositories = make(map[string]manifest.SourcedRepository)
	}
	if s.Installed == nil {
		s.Installed = make(map[string]manifest.InstalledPackage)
	}
	db.state = s
	return db, nil
}

// Snapshot returns a deep-enough copy of the current state for read-only
// use during planning; callers must not mutate the returned maps' values
// in place and expect persistence without calling Update.
func (db *Database) Snapshot() State {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := newState()
	for k, v := range db.state.Repositories {
		s.Repositories[k] = v
	}
	for k, v := range db.state.Installed {
		s.Installed[k] = v
	}
	return s
}

// Update applies f to a mutable view of the state and, on success,
// re-serialises the whole state to disk via write-then-rename.
func (db *Database) Update(f func(*State) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := f(&db.state); err != nil {
		return err
	}
	return db.flush()
}

func (db *Database) flush() error {
	data, err := json.MarshalIndent(db.state, "", "  ")
	if err != nil {
		return depserrors.DatabaseIoError{Path: db.path, Cause: err}
	}

	dir := filepath.Dir(db.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return depserrors.DatabaseIoError{Path: db.path, Cause: err}
		}
	}

	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return depserrors.DatabaseIoError{Path: db.path, Cause: err}
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return depserrors.DatabaseIoError{Path: db.path, Cause: err}
	}
	return nil
}
