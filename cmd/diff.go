package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/textdiff"
)

// RunDiff handles the logic for the 'diff' command: a line-level comparison
// of one file between the folder and the archive.
func RunDiff(ctx context.Context, r *flagparse.Request) error {
	if r.FilePath == "" {
		return fmt.Errorf("the -file flag is required for the diff operation")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	a, _, err := openArchive(&cfg, r)
	if err != nil {
		return err
	}

	localPath := a.LinkPath
	if r.FolderPath != "" {
		localPath, err = absFolderPath(r.FolderPath)
		if err != nil {
			return err
		}
	}
	if localPath == "" {
		return fmt.Errorf("no folder to compare against; use -folder or link the archive first")
	}
	local, err := store.NewLocal(localPath)
	if err != nil {
		return err
	}

	diffs, err := textdiff.Compare(local, a.Store, r.FilePath)
	if err != nil {
		return err
	}

	printLineDiff(diffs)
	return nil
}

// printLineDiff writes the diff in a familiar minus/plus form. Folder
// content is the left side, archive content the right.
func printLineDiff(diffs []diffmatchpatch.Diff) {
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			prefix = "  "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Println(prefix + line)
		}
	}
}
