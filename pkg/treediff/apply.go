package treediff

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pixelgardenlabs/arcmirror/pkg/metrics"
	"github.com/pixelgardenlabs/arcmirror/pkg/sharded"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// dirMetadataWriter is implemented by stores that can stamp directories with
// explicit metadata instead of creation-time defaults.
type dirMetadataWriter interface {
	MkdirWithMetadata(path string, mode os.FileMode, modTime time.Time) error
}

// FilterAddOnly reduces a changeset to its pure additions, dropping every
// modify and remove entry.
func FilterAddOnly(changes []Change) []Change {
	adds := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Kind == KindAdd {
			adds = append(adds, c)
		}
	}
	return adds
}

type applier struct {
	left, right store.Store
	dirWriter   dirMetadataWriter
	metrics     metrics.Metrics

	// parents collapses concurrent creation of the same directory within a
	// batch; created remembers directories across batches so a parent made
	// by an earlier barrier or batch is never recreated.
	parents singleflight.Group
	created *sharded.Set
}

// ApplyRight mutates the right store so it reflects the left store's state
// for every changeset entry, in changeset order. Runs of file writes execute
// on a bounded worker group; directory creation and removal act as barriers
// so the parents-first/children-first ordering of the changeset holds. The
// first failure aborts the remaining batch. On success, a right store that
// accumulates writes is committed. A nil metrics sink disables collection.
func ApplyRight(ctx context.Context, left, right store.Store, changes []Change, m metrics.Metrics) error {
	if !right.Writable() {
		return fmt.Errorf("cannot apply changes to %s: %w", right.Root(), store.ErrReadOnly)
	}
	if m == nil {
		m = &metrics.NoopMetrics{}
	}

	a := &applier{left: left, right: right, metrics: m, created: sharded.NewSet()}
	a.dirWriter, _ = right.(dirMetadataWriter)

	var fileBatch []Change
	for _, c := range changes {
		if !c.Dir && c.Kind != KindRemove {
			fileBatch = append(fileBatch, c)
			continue
		}
		if err := a.applyFileBatch(ctx, fileBatch); err != nil {
			return err
		}
		fileBatch = fileBatch[:0]
		if err := a.applyBarrier(ctx, c); err != nil {
			return err
		}
	}
	if err := a.applyFileBatch(ctx, fileBatch); err != nil {
		return err
	}

	if committer, ok := right.(store.Committer); ok {
		if err := committer.Commit(); err != nil {
			return fmt.Errorf("failed to commit changes to %s: %w", right.Root(), err)
		}
	}
	return nil
}

// applyBarrier handles the ordering-sensitive entries: directory adds and
// removals of any kind.
func (a *applier) applyBarrier(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Kind == KindRemove {
		if err := a.right.Remove(c.Path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", c.Path, err)
		}
		a.metrics.AddEntriesRemoved(1)
		return nil
	}
	meta, err := a.left.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("failed to stat %s on %s: %w", c.Path, a.left.Root(), err)
	}
	if a.dirWriter != nil {
		if err := a.dirWriter.MkdirWithMetadata(c.Path, meta.Mode, meta.ModTime); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", c.Path, err)
		}
	} else if err := a.right.Mkdir(c.Path); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Path, err)
	}
	a.created.Store(c.Path)
	a.metrics.AddEntriesAdded(1)
	return nil
}

// applyFileBatch copies a run of file adds and modifies concurrently. The
// entries in a run never depend on one another, so order within the batch
// does not matter.
func (a *applier) applyFileBatch(ctx context.Context, batch []Change) error {
	if len(batch) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, c := range batch {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return a.copyFile(c)
		})
	}
	return g.Wait()
}

func (a *applier) copyFile(c Change) error {
	meta, err := a.left.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("failed to stat %s on %s: %w", c.Path, a.left.Root(), err)
	}
	data, err := a.left.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s on %s: %w", c.Path, a.left.Root(), err)
	}

	// Concurrent writers in a batch may share a freshly added parent.
	// Deduplicate its creation so the store sees one Mkdir, not one per file.
	if parent := util.ParentPath(c.Path); parent != "/" && !a.created.Has(parent) {
		if _, err, _ := a.parents.Do(parent, func() (any, error) {
			if err := a.right.Mkdir(parent); err != nil {
				return nil, err
			}
			a.created.Store(parent)
			return nil, nil
		}); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", c.Path, err)
		}
	}

	if err := a.right.WriteFile(c.Path, data, meta.Mode, meta.ModTime); err != nil {
		return fmt.Errorf("failed to write %s to %s: %w", c.Path, a.right.Root(), err)
	}
	if c.Kind == KindModify {
		a.metrics.AddEntriesModified(1)
	} else {
		a.metrics.AddEntriesAdded(1)
	}
	a.metrics.AddBytesWritten(int64(len(data)))
	return nil
}
