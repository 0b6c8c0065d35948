package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/config"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/manifest"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
)

// useTempConfigDir points the command layer at a throwaway config
// directory for the duration of one test.
func useTempConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	previous := configDir
	configDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDir = previous })
	return dir
}

func newRequest(command flagparse.Command) *flagparse.Request {
	return &flagparse.Request{
		Command:  command,
		Quiet:    true,
		SetFlags: map[string]bool{},
	}
}

func writeFolderFile(t *testing.T, folder, name, content string) {
	t.Helper()
	full := filepath.Join(folder, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunInitWithFolder(t *testing.T) {
	cfgDir := useTempConfigDir(t)
	folder := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "arc")
	writeFolderFile(t, folder, "note.txt", "hello")

	r := newRequest(flagparse.Init)
	r.ArchivePath = archivePath
	r.FolderPath = folder
	r.Title = "Notes"

	if err := RunInit(context.Background(), r); err != nil {
		t.Fatalf("RunInit failed: %v", err)
	}

	remote, err := store.OpenRemote(archivePath)
	if err != nil {
		t.Fatalf("archive not openable after init: %v", err)
	}
	if remote.Manifest().Title != "Notes" {
		t.Errorf("title = %q, want Notes", remote.Manifest().Title)
	}
	data, err := remote.ReadFile("/note.txt")
	if err != nil || string(data) != "hello" {
		t.Errorf("folder content not merged into archive: %q, %v", data, err)
	}

	cfg, err := config.Load(cfgDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Links) != 1 || cfg.Links[0].ArchiveID != remote.ID() {
		t.Errorf("link registry = %+v", cfg.Links)
	}
	// The merge also places the archive descriptor in the folder.
	if _, err := os.Stat(filepath.Join(folder, manifest.FileName)); err != nil {
		t.Errorf("manifest not copied to folder: %v", err)
	}
}

func TestRunInitRequiresArchive(t *testing.T) {
	useTempConfigDir(t)
	if err := RunInit(context.Background(), newRequest(flagparse.Init)); err == nil {
		t.Fatal("expected error without -archive")
	}
}

func TestRunPushAndPull(t *testing.T) {
	useTempConfigDir(t)
	folder := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "arc")

	r := newRequest(flagparse.Init)
	r.ArchivePath = archivePath
	r.FolderPath = folder
	if err := RunInit(context.Background(), r); err != nil {
		t.Fatalf("RunInit failed: %v", err)
	}

	writeFolderFile(t, folder, "docs/readme.md", "v1")
	push := newRequest(flagparse.Push)
	push.ArchivePath = archivePath
	push.Deep = true
	if err := RunPush(context.Background(), push); err != nil {
		t.Fatalf("RunPush failed: %v", err)
	}

	remote, err := store.OpenRemote(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	data, err := remote.ReadFile("/docs/readme.md")
	if err != nil || string(data) != "v1" {
		t.Fatalf("pushed file missing from archive: %q, %v", data, err)
	}

	// Losing the local copy and pulling restores it from the archive.
	if err := os.RemoveAll(filepath.Join(folder, "docs")); err != nil {
		t.Fatal(err)
	}
	pull := newRequest(flagparse.Pull)
	pull.ArchivePath = archivePath
	pull.Deep = true
	pull.AddOnly = true
	if err := RunPull(context.Background(), pull); err != nil {
		t.Fatalf("RunPull failed: %v", err)
	}
	restored, err := os.ReadFile(filepath.Join(folder, "docs", "readme.md"))
	if err != nil || string(restored) != "v1" {
		t.Errorf("pulled file not restored: %q, %v", restored, err)
	}
}

func TestRunUnlinkByFolder(t *testing.T) {
	cfgDir := useTempConfigDir(t)
	folder := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "arc")

	r := newRequest(flagparse.Init)
	r.ArchivePath = archivePath
	r.FolderPath = folder
	if err := RunInit(context.Background(), r); err != nil {
		t.Fatalf("RunInit failed: %v", err)
	}

	unlink := newRequest(flagparse.Unlink)
	unlink.FolderPath = folder
	if err := RunUnlink(context.Background(), unlink); err != nil {
		t.Fatalf("RunUnlink failed: %v", err)
	}

	cfg, err := config.Load(cfgDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Links) != 0 {
		t.Errorf("link registry not emptied: %+v", cfg.Links)
	}
}

func TestRunUnlinkUnknownFolder(t *testing.T) {
	useTempConfigDir(t)
	unlink := newRequest(flagparse.Unlink)
	unlink.FolderPath = t.TempDir()
	if err := RunUnlink(context.Background(), unlink); err == nil {
		t.Fatal("expected error for unknown folder")
	}
}

func TestRunPrune(t *testing.T) {
	useTempConfigDir(t)
	folder := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "arc")

	r := newRequest(flagparse.Init)
	r.ArchivePath = archivePath
	r.FolderPath = folder
	if err := RunInit(context.Background(), r); err != nil {
		t.Fatalf("RunInit failed: %v", err)
	}

	// Several pushes with new content build up prunable history.
	for _, content := range []string{"a", "b", "c"} {
		writeFolderFile(t, folder, "data.txt", content)
		push := newRequest(flagparse.Push)
		push.ArchivePath = archivePath
		push.Deep = true
		if err := RunPush(context.Background(), push); err != nil {
			t.Fatalf("RunPush failed: %v", err)
		}
	}

	prune := newRequest(flagparse.Prune)
	prune.ArchivePath = archivePath
	prune.Keep = 1
	prune.Force = true
	prune.SetFlags["keep"] = true
	if err := RunPrune(context.Background(), prune); err != nil {
		t.Fatalf("RunPrune failed: %v", err)
	}

	remote, err := store.OpenRemote(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	gens, err := remote.Generations()
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 1 {
		t.Errorf("generations after prune = %v, want exactly one", gens)
	}
	if data, err := remote.ReadFile("/data.txt"); err != nil || string(data) != "c" {
		t.Errorf("latest content lost by prune: %q, %v", data, err)
	}
}

func TestRunPruneRejectsZeroKeep(t *testing.T) {
	useTempConfigDir(t)
	folder := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "arc")

	r := newRequest(flagparse.Init)
	r.ArchivePath = archivePath
	r.FolderPath = folder
	if err := RunInit(context.Background(), r); err != nil {
		t.Fatalf("RunInit failed: %v", err)
	}

	prune := newRequest(flagparse.Prune)
	prune.ArchivePath = archivePath
	prune.Force = true
	prune.SetFlags["keep"] = true
	if err := RunPrune(context.Background(), prune); err == nil {
		t.Fatal("expected error for keep=0")
	}
}

func TestRunVersion(t *testing.T) {
	if err := RunVersion(buildinfo.Name, buildinfo.Version); err != nil {
		t.Fatal(err)
	}
}
