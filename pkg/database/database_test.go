package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flanksource/deps-fetch/pkg/manifest"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	snap := db.Snapshot()
	if len(snap.Repositories) != 0 || len(snap.Installed) != 0 {
		t.Fatalf("expected empty state, got %+v", snap)
	}
}

func TestOpenParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected DatabaseParseError")
	}
}

func TestUpdateThenReopenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err = db.Update(func(s *State) error {
		s.Installed["tool"] = manifest.InstalledPackage{
			Manifest:       manifest.PackageManifest{Name: "tool"},
			RepoName:       "r",
			Version:        "1.0",
			InstalledAt:    now,
			Binaries:       []string{"tool"},
			InstalledAsDep: false,
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	snap := db2.Snapshot()
	ip, ok := snap.Installed["tool"]
	if !ok {
		t.Fatal("expected 'tool' to survive reopen")
	}
	if ip.Version != "1.0" || ip.RepoName != "r" || len(ip.Binaries) != 1 || ip.Binaries[0] != "tool" {
		t.Errorf("round-tripped record mismatch: %+v", ip)
	}
	if !ip.InstalledAt.Equal(now) {
		t.Errorf("InstalledAt = %v, want %v", ip.InstalledAt, now)
	}
}

func TestUpdateFailurePreDbCommitLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Update(func(s *State) error {
		s.Installed["tool"] = manifest.InstalledPackage{Manifest: manifest.PackageManifest{Name: "tool"}}
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	sentinel := os.ErrClosed
	err = db.Update(func(s *State) error {
		s.Installed["other"] = manifest.InstalledPackage{Manifest: manifest.PackageManifest{Name: "other"}}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Update returned %v, want %v", err, sentinel)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after failed Update: %v", err)
	}
	if string(before) != string(after) {
		t.Error("on-disk database changed despite the mutator returning an error")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Update(func(s *State) error {
		s.Installed["tool"] = manifest.InstalledPackage{Manifest: manifest.PackageManifest{Name: "tool"}}
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap := db.Snapshot()
	delete(snap.Installed, "tool")

	snap2 := db.Snapshot()
	if _, ok := snap2.Installed["tool"]; !ok {
		t.Error("mutating a Snapshot's map must not affect the database's own state")
	}
}
