package syncer

import (
	"context"
	"fmt"

	"github.com/pixelgardenlabs/arcmirror/pkg/manifest"
)

// Merge reconciles a folder with an archive it has not been linked to
// before, in three strictly ordered steps:
//
//  1. Copy the archive's manifest file into the folder, so the folder
//     carries the archive descriptor before anything else runs.
//  2. Add-only copy archive to folder, populating the folder with every
//     archive entry it does not already have. Existing folder content is
//     never overwritten or deleted.
//  3. Full folder-to-archive sync. Folder content now takes precedence:
//     shared files keep the folder's version and archive entries missing
//     from the folder are removed.
//
// Net effect: folder-present files win, archive-only files survive, and
// deletions flow from the folder to the archive.
func (s *Syncer) Merge(ctx context.Context, a *Archive, localPath string) error {
	if !a.Store.Writable() {
		return fmt.Errorf("cannot merge folder into archive %s: %w", a.ID, ErrArchiveNotWritable)
	}

	opts := NewOptions()
	opts.Shallow = false
	opts.LocalSyncPath = localPath

	manifestOnly := opts
	manifestOnly.Paths = []string{manifest.PathKey}
	if err := s.SyncArchiveToFolder(ctx, a, manifestOnly); err != nil {
		return fmt.Errorf("merge step 1 (copy manifest) failed: %w", err)
	}

	addOnly := opts
	addOnly.AddOnly = true
	if err := s.SyncArchiveToFolder(ctx, a, addOnly); err != nil {
		return fmt.Errorf("merge step 2 (populate folder) failed: %w", err)
	}

	if err := s.SyncFolderToArchive(ctx, a, opts); err != nil {
		return fmt.Errorf("merge step 3 (push folder) failed: %w", err)
	}
	return nil
}
