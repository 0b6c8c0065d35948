package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/lockfile"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
)

// RunPush syncs the linked folder's content into the archive.
func RunPush(ctx context.Context, r *flagparse.Request) error {
	return runSync(ctx, r, syncer.DirectionArchive)
}

// RunPull syncs the archive's content into the linked folder.
func RunPull(ctx context.Context, r *flagparse.Request) error {
	return runSync(ctx, r, syncer.DirectionFolder)
}

func runSync(ctx context.Context, r *flagparse.Request, direction syncer.Direction) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	a, link, err := openArchive(&cfg, r)
	if err != nil {
		return err
	}

	opts := syncer.NewOptions()
	if r.Deep {
		opts.Shallow = false
	}
	opts.AddOnly = r.AddOnly
	opts.Paths = r.Paths
	// An explicit -folder wins over the registered link path, so a one-off
	// sync against an unlinked folder is possible.
	if r.FolderPath != "" && (link == nil || r.Set("folder")) {
		abs, err := absFolderPath(r.FolderPath)
		if err != nil {
			return err
		}
		opts.LocalSyncPath = abs
	}

	startTime := time.Now()
	s := newSyncer(nil)

	switch direction {
	case syncer.DirectionArchive:
		lock, err := lockfile.Acquire(ctx, a.Store.Root(), "arcmirror-push")
		if err != nil {
			return fmt.Errorf("failed to acquire lock on archive: %w", err)
		}
		defer lock.Release()
		err = s.SyncFolderToArchive(ctx, a, opts)
		if err != nil {
			return err
		}
	case syncer.DirectionFolder:
		if err := s.SyncArchiveToFolder(ctx, a, opts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("internal error: unknown sync direction %q", direction)
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" sync finished successfully.", "direction", string(direction), "duration", duration)
	return nil
}
