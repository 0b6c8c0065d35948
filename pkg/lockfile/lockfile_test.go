package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(context.Background(), dir, "test")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("lock file missing after Acquire: %v", err)
	}

	lock.Release()
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Error("lock file still present after Release")
	}
	// A second Release must be harmless.
	lock.Release()
}

func TestAcquireContended(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(context.Background(), dir, "test")
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = Acquire(context.Background(), dir, "test")
	var active *ErrLockActive
	if !errors.As(err, &active) {
		t.Fatalf("expected *ErrLockActive, got %v", err)
	}
	if active.PID != int64(os.Getpid()) {
		t.Errorf("lock reported holder PID %d, want %d", active.PID, os.Getpid())
	}
}

func TestAcquireTakesOverStaleLock(t *testing.T) {
	dir := t.TempDir()
	stale := Info{
		PID:        99999,
		Hostname:   "elsewhere",
		UpdatedUTC: time.Now().UTC().Add(-24 * time.Hour),
		Tool:       "test",
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(context.Background(), dir, "test")
	if err != nil {
		t.Fatalf("expected takeover of stale lock, got %v", err)
	}
	defer lock.Release()
	if lock.info.PID != int64(os.Getpid()) {
		t.Errorf("takeover kept PID %d, want %d", lock.info.PID, os.Getpid())
	}
}

func TestAcquireTakesOverCorruptLock(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	lock, err := Acquire(context.Background(), dir, "test")
	if err != nil {
		t.Fatalf("expected takeover of corrupt lock, got %v", err)
	}
	lock.Release()
}

func TestAcquireCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Acquire(ctx, t.TempDir(), "test"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
