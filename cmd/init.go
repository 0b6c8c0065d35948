package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/config"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/lockfile"
	"github.com/pixelgardenlabs/arcmirror/pkg/manifest"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/preflight"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
)

// RunInit handles the logic for the 'init' command. It creates a new archive
// and, when a folder is given, links it and merges its content in.
func RunInit(ctx context.Context, r *flagparse.Request) error {
	if r.ArchivePath == "" {
		return fmt.Errorf("the -archive flag is required for the init operation")
	}

	absArchivePath, err := absFolderPath(r.ArchivePath)
	if err != nil {
		return err
	}
	if err := preflight.CheckArchiveTargetAccessible(absArchivePath); err != nil {
		return fmt.Errorf("archive target check failed: %w", err)
	}

	var absFolder string
	if r.FolderPath != "" {
		absFolder, err = absFolderPath(r.FolderPath)
		if err != nil {
			return err
		}
		if err := preflight.CheckSyncFolder(absFolder); err != nil {
			return fmt.Errorf("sync folder check failed: %w", err)
		}
	}

	cfg, cfgDir, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	title := r.Title
	if title == "" {
		title = filepath.Base(absArchivePath)
	}

	startTime := time.Now()

	man, err := manifest.New(title, buildinfo.Version)
	if err != nil {
		return fmt.Errorf("failed to create archive manifest: %w", err)
	}
	remote, err := store.CreateRemote(absArchivePath, man)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	plog.Info("Archive created.", "id", remote.ID(), "title", title, "path", absArchivePath)

	if absFolder != "" {
		lock, err := lockfile.Acquire(ctx, absArchivePath, "arcmirror-init")
		if err != nil {
			return fmt.Errorf("failed to acquire lock on archive: %w", err)
		}
		defer lock.Release()

		a := &syncer.Archive{ID: remote.ID(), Store: remote, LinkPath: absFolder}
		s := newSyncer(nil)
		if err := s.Merge(ctx, a, absFolder); err != nil {
			return fmt.Errorf("initial merge failed: %w", err)
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
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" archive successfully initialized.", "duration", duration)
	return nil
}
