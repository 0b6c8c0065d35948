package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
)

type countingSyncer struct {
	calls   atomic.Int64
	shallow atomic.Bool
}

func (c *countingSyncer) SyncFolderToArchive(_ context.Context, _ *syncer.Archive, opts syncer.Options) error {
	c.calls.Add(1)
	c.shallow.Store(opts.Shallow)
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestDebounceCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	s := &countingSyncer{}
	c := NewController(s, 150*time.Millisecond)
	a := &syncer.Archive{ID: "burst", LinkPath: dir}
	if err := c.Attach(a); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer c.Close()

	// A burst of writes inside one quiescence window.
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !waitFor(t, 3*time.Second, func() bool { return s.calls.Load() >= 1 }) {
		t.Fatal("debounced sync never fired")
	}
	// Allow another full window to pass to catch spurious extra syncs.
	time.Sleep(400 * time.Millisecond)
	if got := s.calls.Load(); got != 1 {
		t.Errorf("burst triggered %d syncs, want 1", got)
	}
	if s.shallow.Load() {
		t.Error("watch-triggered sync must compare at full depth")
	}
}

func TestPendingLifecycle(t *testing.T) {
	dir := t.TempDir()
	s := &countingSyncer{}
	c := NewController(s, 100*time.Millisecond)
	a := &syncer.Archive{ID: "pending", LinkPath: dir}
	if err := c.Attach(a); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Pending(a.ID) {
		t.Error("fresh session should not be pending")
	}
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return c.Pending(a.ID) }) {
		t.Fatal("change event never marked the session pending")
	}
	if !waitFor(t, 2*time.Second, func() bool { return !c.Pending(a.ID) }) {
		t.Fatal("session stayed pending after the sync fired")
	}
	if s.calls.Load() != 1 {
		t.Errorf("expected exactly one sync, got %d", s.calls.Load())
	}
}

func TestDetachCancelsPendingSync(t *testing.T) {
	dir := t.TempDir()
	s := &countingSyncer{}
	c := NewController(s, 200*time.Millisecond)
	a := &syncer.Archive{ID: "cancel", LinkPath: dir}
	if err := c.Attach(a); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return c.Pending(a.ID) }) {
		t.Fatal("change event never marked the session pending")
	}
	if err := c.Detach(a.ID); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	if got := s.calls.Load(); got != 0 {
		t.Errorf("detached watcher still fired %d syncs", got)
	}
	if c.Pending(a.ID) {
		t.Error("detached archive reported pending")
	}
}

func TestAttachRequiresLink(t *testing.T) {
	c := NewController(&countingSyncer{}, time.Second)
	if err := c.Attach(&syncer.Archive{ID: "unlinked"}); err == nil {
		t.Error("expected error attaching an unlinked archive")
	}
}

func TestAttachTwiceIsNoOp(t *testing.T) {
	dir := t.TempDir()
	c := NewController(&countingSyncer{}, time.Second)
	a := &syncer.Archive{ID: "twice", LinkPath: dir}
	if err := c.Attach(a); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Attach(a); err != nil {
		t.Errorf("second Attach should be a no-op, got %v", err)
	}
}
