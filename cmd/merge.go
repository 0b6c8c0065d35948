package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/lockfile"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
)

// RunMerge handles the logic for the 'merge' command: a bidirectional
// reconciliation where local files win on conflict and nothing is deleted.
func RunMerge(ctx context.Context, r *flagparse.Request) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	a, link, err := openArchive(&cfg, r)
	if err != nil {
		return err
	}

	localPath := a.LinkPath
	if r.FolderPath != "" && (link == nil || r.Set("folder")) {
		localPath, err = absFolderPath(r.FolderPath)
		if err != nil {
			return err
		}
	}
	if localPath == "" {
		return fmt.Errorf("no folder to merge with; use -folder or link the archive first")
	}

	lock, err := lockfile.Acquire(ctx, a.Store.Root(), "arcmirror-merge")
	if err != nil {
		return fmt.Errorf("failed to acquire lock on archive: %w", err)
	}
	defer lock.Release()

	startTime := time.Now()
	s := newSyncer(nil)
	if err := s.Merge(ctx, a, localPath); err != nil {
		return err
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" merge finished successfully.", "id", a.ID, "duration", duration)
	return nil
}
