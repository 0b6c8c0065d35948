package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelgardenlabs/arcmirror/pkg/manifest"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
)

type stubPending bool

func (p stubPending) Pending(string) bool { return bool(p) }

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	man, err := manifest.New("test-archive", "test")
	if err != nil {
		t.Fatal(err)
	}
	remote, err := store.CreateRemote(filepath.Join(t.TempDir(), "archive"), man)
	if err != nil {
		t.Fatal(err)
	}
	return &Archive{ID: man.ID, Store: remote}
}

func newFolder(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestSyncFolderToArchive(t *testing.T) {
	a := newTestArchive(t)
	a.LinkPath = newFolder(t, map[string]string{
		"a.txt":     "alpha",
		"dir/b.txt": "beta",
	})

	s := New(nil, nil)
	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) { events = append(events, ev) })
	defer unsubscribe()

	if err := s.SyncFolderToArchive(context.Background(), a, NewOptions()); err != nil {
		t.Fatalf("SyncFolderToArchive failed: %v", err)
	}

	data, err := a.Store.ReadFile("/dir/b.txt")
	if err != nil || string(data) != "beta" {
		t.Errorf("archive ReadFile = %q, %v", data, err)
	}
	if len(events) != 1 || events[0] != (Event{ArchiveID: a.ID, Direction: DirectionArchive}) {
		t.Errorf("events = %v, want one archive-direction event", events)
	}

	// A second run with no intervening changes must not commit a new
	// generation.
	head := a.Store.Head()
	if err := s.SyncFolderToArchive(context.Background(), a, NewOptions()); err != nil {
		t.Fatal(err)
	}
	if a.Store.Head() != head {
		t.Errorf("head advanced from %d to %d, want no new generation", head, a.Store.Head())
	}
}

func TestSyncArchiveToFolder(t *testing.T) {
	a := newTestArchive(t)
	a.LinkPath = newFolder(t, nil)
	if err := a.Store.WriteFile("/notes.md", []byte("hello"), 0644, a.Store.Manifest().CreatedUTC); err != nil {
		t.Fatal(err)
	}

	s := New(nil, stubPending(false))
	if err := s.SyncArchiveToFolder(context.Background(), a, NewOptions()); err != nil {
		t.Fatalf("SyncArchiveToFolder failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(a.LinkPath, "notes.md"))
	if err != nil || string(data) != "hello" {
		t.Errorf("folder content = %q, %v", data, err)
	}
}

func TestSyncArchiveToFolderSkipsWhenPending(t *testing.T) {
	a := newTestArchive(t)
	a.LinkPath = newFolder(t, nil)
	if err := a.Store.WriteFile("/notes.md", []byte("hello"), 0644, a.Store.Manifest().CreatedUTC); err != nil {
		t.Fatal(err)
	}

	s := New(nil, stubPending(true))
	if err := s.SyncArchiveToFolder(context.Background(), a, NewOptions()); err != nil {
		t.Fatalf("expected skip, got error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.LinkPath, "notes.md")); !os.IsNotExist(err) {
		t.Error("folder was written while a folder sync was pending")
	}
}

func TestSyncWithoutLocalPathIsNoOp(t *testing.T) {
	a := newTestArchive(t)

	s := New(nil, nil)
	if err := s.SyncFolderToArchive(context.Background(), a, NewOptions()); err != nil {
		t.Errorf("unlinked push: %v", err)
	}
	if err := s.SyncArchiveToFolder(context.Background(), a, NewOptions()); err != nil {
		t.Errorf("unlinked pull: %v", err)
	}
}

func TestSyncFolderToArchiveNotWritable(t *testing.T) {
	a := newTestArchive(t)
	a.LinkPath = newFolder(t, map[string]string{"a.txt": "x"})

	root := a.Store.Root()
	man := a.Store.Manifest()
	man.ReadOnly = true
	if err := manifest.Write(root, man); err != nil {
		t.Fatal(err)
	}
	readonly, err := store.OpenRemote(root)
	if err != nil {
		t.Fatal(err)
	}
	a.Store = readonly

	err = New(nil, nil).SyncFolderToArchive(context.Background(), a, NewOptions())
	if !errors.Is(err, ErrArchiveNotWritable) {
		t.Errorf("expected ErrArchiveNotWritable, got %v", err)
	}
}

func TestIgnoreRulesApplied(t *testing.T) {
	a := newTestArchive(t)
	a.LinkPath = newFolder(t, map[string]string{
		".arcignore": "*.log\n",
		"keep.txt":   "k",
		"noise.log":  "n",
	})

	s := New(nil, nil)
	if err := s.SyncFolderToArchive(context.Background(), a, NewOptions()); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Store.Stat("/keep.txt"); err != nil {
		t.Errorf("expected /keep.txt in archive: %v", err)
	}
	if _, err := a.Store.Stat("/noise.log"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected /noise.log to be excluded, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	a := newTestArchive(t)
	stamp := a.Store.Manifest().CreatedUTC
	if err := a.Store.WriteFile("/x.txt", []byte("a"), 0644, stamp); err != nil {
		t.Fatal(err)
	}
	if err := a.Store.WriteFile("/y.txt", []byte("a"), 0644, stamp); err != nil {
		t.Fatal(err)
	}
	folder := newFolder(t, map[string]string{"x.txt": "f"})

	s := New(nil, nil)
	if err := s.Merge(context.Background(), a, folder); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// Folder content wins for shared files; archive-only files survive on
	// both sides; the manifest descriptor lands in the folder.
	for path, want := range map[string]string{"x.txt": "f", "y.txt": "a"} {
		data, err := os.ReadFile(filepath.Join(folder, path))
		if err != nil || string(data) != want {
			t.Errorf("folder %s = %q, %v, want %q", path, data, err, want)
		}
		remoteData, err := a.Store.ReadFile("/" + path)
		if err != nil || string(remoteData) != want {
			t.Errorf("archive %s = %q, %v, want %q", path, remoteData, err, want)
		}
	}
	if _, err := os.Stat(filepath.Join(folder, manifest.FileName)); err != nil {
		t.Errorf("expected manifest in folder: %v", err)
	}
	if _, err := a.Store.Stat(manifest.PathKey); err != nil {
		t.Errorf("expected manifest entry to survive merge: %v", err)
	}
}

func TestSyncFailureEmitsNoEvent(t *testing.T) {
	a := newTestArchive(t)
	stamp := a.Store.Manifest().CreatedUTC
	if err := a.Store.WriteFile("/data.txt", []byte("payload"), 0644, stamp); err != nil {
		t.Fatal(err)
	}
	if err := a.Store.Commit(); err != nil {
		t.Fatal(err)
	}
	// Destroying the object store makes every blob read fail, so the apply
	// stage aborts mid-changeset.
	if err := os.RemoveAll(filepath.Join(a.Store.Root(), "objects")); err != nil {
		t.Fatal(err)
	}

	folder := newFolder(t, nil)
	s := New(nil, nil)
	events := 0
	defer s.Subscribe(func(Event) { events++ })()

	opts := NewOptions()
	opts.Shallow = false
	opts.LocalSyncPath = folder
	if err := s.SyncArchiveToFolder(context.Background(), a, opts); err == nil {
		t.Fatal("expected sync to fail on missing blobs")
	}
	if events != 0 {
		t.Errorf("observers notified %d times for a failed sync", events)
	}
	if _, err := os.Stat(filepath.Join(folder, "data.txt")); !os.IsNotExist(err) {
		t.Errorf("file materialized despite failed sync: %v", err)
	}
}

func TestFolderSyncKeepsManifestEntry(t *testing.T) {
	a := newTestArchive(t)
	folder := newFolder(t, map[string]string{"a.txt": "alpha"})

	s := New(nil, nil)
	opts := NewOptions()
	opts.LocalSyncPath = folder
	if err := s.SyncFolderToArchive(context.Background(), a, opts); err != nil {
		t.Fatalf("SyncFolderToArchive failed: %v", err)
	}

	// The folder never received the descriptor, yet its absence must not
	// propagate into the archive as a remove.
	if _, err := a.Store.Stat(manifest.PathKey); err != nil {
		t.Fatalf("descriptor entry dropped by folder sync: %v", err)
	}
	if data, err := a.Store.ReadFile("/a.txt"); err != nil || string(data) != "alpha" {
		t.Errorf("archive /a.txt = %q, %v", data, err)
	}
}
