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

// RunPrune handles the logic for the 'prune' command. It drops old sealed
// generations and sweeps content no remaining generation references.
func RunPrune(ctx context.Context, r *flagparse.Request) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	a, _, err := openArchive(&cfg, r)
	if err != nil {
		return err
	}

	keep := cfg.Engine.KeepGenerations
	if r.Set("keep") {
		keep = r.Keep
	}
	if keep < 1 {
		return fmt.Errorf("at least one generation must be kept, got %d", keep)
	}

	if !r.Force {
		fmt.Printf("This operation will permanently delete archive history beyond the last %d generation(s).\n", keep)
		if !PromptForConfirmation("Are you sure you want to continue?", false) {
			plog.Info(buildinfo.Name + " prune operation canceled.")
			return nil
		}
	}

	lock, err := lockfile.Acquire(ctx, a.Store.Root(), "arcmirror-prune")
	if err != nil {
		return fmt.Errorf("failed to acquire lock on archive: %w", err)
	}
	defer lock.Release()

	startTime := time.Now()
	if err := a.Store.Prune(keep); err != nil {
		return err
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" prune finished successfully.", "id", a.ID, "kept", keep, "duration", duration)
	return nil
}
