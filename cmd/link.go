package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/config"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/lockfile"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/preflight"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
)

// RunLink handles the logic for the 'link' command. Linking a folder to an
// archive merges both sides so neither loses content.
func RunLink(ctx context.Context, r *flagparse.Request) error {
	if r.ArchivePath == "" {
		return fmt.Errorf("the -archive flag is required for the link operation")
	}
	if r.FolderPath == "" {
		return fmt.Errorf("the -folder flag is required for the link operation")
	}

	absArchivePath, err := absFolderPath(r.ArchivePath)
	if err != nil {
		return err
	}
	absFolder, err := absFolderPath(r.FolderPath)
	if err != nil {
		return err
	}
	if err := preflight.CheckSyncFolder(absFolder); err != nil {
		return fmt.Errorf("sync folder check failed: %w", err)
	}

	cfg, cfgDir, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	remote, err := store.OpenRemote(absArchivePath)
	if err != nil {
		return fmt.Errorf("could not open archive at %s: %w", absArchivePath, err)
	}

	if existing := cfg.FindLink(remote.ID()); existing != nil && existing.FolderPath != absFolder {
		plog.Warn("Archive is already linked to another folder; replacing the link.",
			"id", remote.ID(), "previous", existing.FolderPath)
	}

	lock, err := lockfile.Acquire(ctx, absArchivePath, "arcmirror-link")
	if err != nil {
		return fmt.Errorf("failed to acquire lock on archive: %w", err)
	}
	defer lock.Release()

	startTime := time.Now()

	a := &syncer.Archive{ID: remote.ID(), Store: remote, LinkPath: absFolder}
	s := newSyncer(nil)
	if err := s.Merge(ctx, a, absFolder); err != nil {
		return fmt.Errorf("link merge failed: %w", err)
	}

	cfg.SetLink(config.LinkConfig{
		ArchiveID:   remote.ID(),
		ArchivePath: absArchivePath,
		FolderPath:  absFolder,
		Watch:       r.Watch,
	})
	if err := cfg.Save(cfgDir); err != nil {
		return fmt.Errorf("failed to save link registry: %w", err)
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" folder successfully linked.", "id", remote.ID(), "duration", duration)
	return nil
}

// RunUnlink removes the link between a folder and an archive. Content on
// both sides is left untouched.
func RunUnlink(ctx context.Context, r *flagparse.Request) error {
	cfg, cfgDir, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	link, err := resolveLink(&cfg, r)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("the -archive-id or -folder flag is required for the unlink operation")
	}

	id := link.ArchiveID
	cfg.RemoveLink(id)
	if err := cfg.Save(cfgDir); err != nil {
		return fmt.Errorf("failed to save link registry: %w", err)
	}

	plog.Info(buildinfo.Name+" link removed.", "id", id)
	return nil
}
