// Package treediff computes and applies ordered changesets between two file
// stores. Diff describes how the right store must change to match the left
// one; ApplyRight performs those changes.
package treediff

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/metrics"
	"github.com/pixelgardenlabs/arcmirror/pkg/pathfilter"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
)

// Kind classifies a single change. Renames surface as a remove plus an add.
type Kind string

const (
	KindAdd    Kind = "add"
	KindModify Kind = "modify"
	KindRemove Kind = "remove"
)

// Change is one element of an ordered changeset: parents precede children
// for adds, children precede parents for removes.
type Change struct {
	Path string
	Kind Kind
	Dir  bool
}

// Options controls a single Diff run.
type Options struct {
	// Shallow skips descending into directory pairs whose own metadata
	// compares equal. Deep runs (Shallow false) always descend.
	Shallow bool

	// CompareContent reads and byte-compares files whose metadata matches,
	// so a content change hidden behind identical metadata still surfaces
	// as a modify.
	CompareContent bool

	// Filter excludes paths from the comparison entirely. Nil means no
	// exclusions.
	Filter pathfilter.Filter

	// Metrics collects per-entry counters for the run. Nil disables
	// collection.
	Metrics metrics.Metrics
}

type differ struct {
	left, right store.Store
	opts        Options
	changes     []Change
}

// Diff walks both stores from the root and returns the ordered changeset
// that would make right match left, restricted to paths the filter does not
// exclude. Any store error aborts the run; no partial changeset is returned.
func Diff(ctx context.Context, left, right store.Store, opts Options) ([]Change, error) {
	if opts.Filter == nil {
		opts.Filter = pathfilter.None
	}
	if opts.Metrics == nil {
		opts.Metrics = &metrics.NoopMetrics{}
	}
	d := &differ{left: left, right: right, opts: opts}
	if err := d.diffDir(ctx, "/"); err != nil {
		return nil, err
	}
	return d.changes, nil
}

func (d *differ) emit(path string, kind Kind, dir bool) {
	d.changes = append(d.changes, Change{Path: path, Kind: kind, Dir: dir})
}

func (d *differ) diffDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	leftEntries, err := d.left.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s on %s: %w", dir, d.left.Root(), err)
	}
	rightEntries, err := d.right.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s on %s: %w", dir, d.right.Root(), err)
	}

	rightByPath := make(map[string]store.Metadata, len(rightEntries))
	for _, r := range rightEntries {
		rightByPath[r.Path] = r
	}

	for _, l := range leftEntries {
		if d.opts.Filter(l.Path, l.Dir) {
			d.opts.Metrics.AddEntriesExcluded(1)
			continue
		}
		r, exists := rightByPath[l.Path]
		if exists {
			delete(rightByPath, l.Path)
		}

		switch {
		case !exists:
			if err := d.addAll(ctx, l); err != nil {
				return err
			}
		case l.Dir != r.Dir:
			// Type changed between file and directory. The old entry goes
			// away before the new one is created at the same path.
			if err := d.removeAll(ctx, r); err != nil {
				return err
			}
			if err := d.addAll(ctx, l); err != nil {
				return err
			}
		case l.Dir:
			if !d.opts.Shallow || !sameTime(l.ModTime, r.ModTime) {
				if err := d.diffDir(ctx, l.Path); err != nil {
					return err
				}
			}
		default:
			changed, err := d.fileChanged(l, r)
			if err != nil {
				return err
			}
			if changed {
				d.emit(l.Path, KindModify, false)
			} else {
				d.opts.Metrics.AddEntriesUpToDate(1)
			}
		}
	}

	// Whatever is left on the right side has no counterpart on the left.
	for _, r := range rightEntries {
		if _, rightOnly := rightByPath[r.Path]; !rightOnly {
			continue
		}
		if d.opts.Filter(r.Path, r.Dir) {
			d.opts.Metrics.AddEntriesExcluded(1)
			continue
		}
		if err := d.removeAll(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// addAll emits an add for the entry and, for directories, for every
// non-excluded descendant, parents first.
func (d *differ) addAll(ctx context.Context, m store.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.emit(m.Path, KindAdd, m.Dir)
	if !m.Dir {
		return nil
	}
	children, err := d.left.ReadDir(m.Path)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s on %s: %w", m.Path, d.left.Root(), err)
	}
	for _, child := range children {
		if d.opts.Filter(child.Path, child.Dir) {
			d.opts.Metrics.AddEntriesExcluded(1)
			continue
		}
		if err := d.addAll(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// removeAll emits removes children first. A directory holding an excluded
// child cannot be removed wholesale, so it survives with the exclusions
// still inside it.
func (d *differ) removeAll(ctx context.Context, m store.Metadata) error {
	_, err := d.emitRemoves(ctx, m)
	return err
}

func (d *differ) emitRemoves(ctx context.Context, m store.Metadata) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !m.Dir {
		d.emit(m.Path, KindRemove, false)
		return true, nil
	}
	children, err := d.right.ReadDir(m.Path)
	if err != nil {
		return false, fmt.Errorf("failed to enumerate %s on %s: %w", m.Path, d.right.Root(), err)
	}
	removable := true
	for _, child := range children {
		if d.opts.Filter(child.Path, child.Dir) {
			d.opts.Metrics.AddEntriesExcluded(1)
			removable = false
			continue
		}
		childRemovable, err := d.emitRemoves(ctx, child)
		if err != nil {
			return false, err
		}
		removable = removable && childRemovable
	}
	if removable {
		d.emit(m.Path, KindRemove, true)
	}
	return removable, nil
}

func (d *differ) fileChanged(l, r store.Metadata) (bool, error) {
	if l.Size != r.Size || !sameTime(l.ModTime, r.ModTime) {
		return true, nil
	}
	if !d.opts.CompareContent {
		return false, nil
	}
	leftData, err := d.left.ReadFile(l.Path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s on %s: %w", l.Path, d.left.Root(), err)
	}
	rightData, err := d.right.ReadFile(r.Path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s on %s: %w", r.Path, d.right.Root(), err)
	}
	return !bytes.Equal(leftData, rightData), nil
}

// sameTime compares modification times at second granularity, since not
// every filesystem stores sub-second precision.
func sameTime(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
