// Package syncer is the directional entry point of the engine: it resolves
// the local folder bound to an archive, builds the path filter, runs the
// diff and applies the resulting changeset in the requested direction.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pixelgardenlabs/arcmirror/pkg/ignore"
	"github.com/pixelgardenlabs/arcmirror/pkg/manifest"
	"github.com/pixelgardenlabs/arcmirror/pkg/metrics"
	"github.com/pixelgardenlabs/arcmirror/pkg/pathfilter"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/settings"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/treediff"
)

// ErrArchiveNotWritable is returned when a folder-to-archive sync targets an
// archive the caller may not write to.
var ErrArchiveNotWritable = errors.New("archive is not writable")

// Direction names the side of an archive/folder pair that a sync just wrote.
type Direction string

const (
	// DirectionArchive means the archive was written (folder to archive).
	DirectionArchive Direction = "archive"
	// DirectionFolder means the folder was written (archive to folder).
	DirectionFolder Direction = "folder"
)

// Event is emitted to subscribed observers after every successful sync.
type Event struct {
	ArchiveID string
	Direction Direction
}

// Archive is the unit a sync operates on: a remote store plus the local
// folder it is linked to. LinkPath is empty for an unlinked archive.
type Archive struct {
	ID       string
	Store    *store.Remote
	LinkPath string
}

// SettingsReader provides process-wide setting values. Satisfied by
// settings.Store.
type SettingsReader interface {
	Get(key string) string
}

// PendingChecker reports whether a folder-originated sync is queued or
// running for an archive. Satisfied by watch.Controller; the syncer uses it
// to keep an archive-to-folder sync from fighting an in-flight
// folder-to-archive one.
type PendingChecker interface {
	Pending(archiveID string) bool
}

// Options configures a single sync call. Use NewOptions for defaults.
type Options struct {
	// Shallow controls whether the diff may skip directories whose own
	// metadata compares equal.
	Shallow bool

	// CompareContent enables byte comparison of files whose metadata
	// matches.
	CompareContent bool

	// Paths, when set, restricts the sync to these targets and their
	// subtrees, overriding ignore-rule filtering.
	Paths []string

	// AddOnly drops every modify and remove from the changeset, so the
	// destination only ever gains entries.
	AddOnly bool

	// LocalSyncPath overrides the archive's configured link path.
	LocalSyncPath string
}

// NewOptions returns the default sync configuration.
func NewOptions() Options {
	return Options{
		Shallow:        true,
		CompareContent: true,
	}
}

// Syncer coordinates directional syncs between archives and their linked
// folders. Safe for concurrent use; syncs on distinct archives proceed
// independently.
type Syncer struct {
	settings SettingsReader
	pending  PendingChecker

	mu        sync.Mutex
	nextSubID int
	observers map[int]func(Event)
}

// New creates a Syncer. settings may be nil, in which case the built-in
// default ignore rules apply; pending may be nil, which disables the
// pending-sync guard.
func New(s SettingsReader, pending PendingChecker) *Syncer {
	return &Syncer{
		settings:  s,
		pending:   pending,
		observers: make(map[int]func(Event)),
	}
}

// Subscribe registers an observer for sync events. The returned function
// removes the registration. Observers run synchronously on the syncing
// goroutine and must not block.
func (s *Syncer) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Syncer) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// SyncFolderToArchive mirrors the linked folder into the archive. It fails
// with ErrArchiveNotWritable on a read-only archive and is a silent no-op
// when no local path resolves.
func (s *Syncer) SyncFolderToArchive(ctx context.Context, a *Archive, opts Options) error {
	if !a.Store.Writable() {
		return fmt.Errorf("cannot sync folder to archive %s: %w", a.ID, ErrArchiveNotWritable)
	}
	local, err := s.openLocal(a, opts)
	if err != nil || local == nil {
		return err
	}
	if err := s.run(ctx, local, a.Store, local, opts, manifestPin); err != nil {
		return fmt.Errorf("folder to archive sync for %s failed: %w", a.ID, err)
	}
	s.emit(Event{ArchiveID: a.ID, Direction: DirectionArchive})
	return nil
}

// SyncArchiveToFolder mirrors the archive into the linked folder. The call
// is skipped, not queued, while a folder-originated sync is pending for the
// same archive, and is a silent no-op when no local path resolves.
func (s *Syncer) SyncArchiveToFolder(ctx context.Context, a *Archive, opts Options) error {
	if s.pending != nil && s.pending.Pending(a.ID) {
		plog.Info("Skipping archive to folder sync, folder sync pending", "archive", a.ID)
		return nil
	}
	local, err := s.openLocal(a, opts)
	if err != nil || local == nil {
		return err
	}
	if err := s.run(ctx, a.Store, local, local, opts, nil); err != nil {
		return fmt.Errorf("archive to folder sync for %s failed: %w", a.ID, err)
	}
	s.emit(Event{ArchiveID: a.ID, Direction: DirectionFolder})
	return nil
}

// openLocal resolves and opens the local endpoint for a sync call. A nil
// store with a nil error means there is nothing to sync.
func (s *Syncer) openLocal(a *Archive, opts Options) (*store.Local, error) {
	path := opts.LocalSyncPath
	if path == "" {
		path = a.LinkPath
	}
	if path == "" {
		plog.Debug("No local path for archive, nothing to sync", "archive", a.ID)
		return nil, nil
	}
	local, err := store.NewLocal(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync folder for archive %s: %w", a.ID, err)
	}
	return local, nil
}

// manifestPin excludes the archive descriptor from folder-originated
// changesets. A folder that never received the file through a merge must not
// push its absence into the archive as a remove.
func manifestPin(path string, _ bool) bool {
	return path == manifest.PathKey
}

// run executes the shared diff and apply procedure with left as the source
// of truth. The ignore ruleset is reloaded from the folder on every call so
// an edited rule file can never be served stale. A non-nil pinned filter is
// applied on top of both rule and allow-list filtering.
func (s *Syncer) run(ctx context.Context, left, right store.Store, folder *store.Local, opts Options, pinned pathfilter.Filter) error {
	var filter pathfilter.Filter
	if len(opts.Paths) > 0 {
		filter = pathfilter.FromTargets(opts.Paths)
	} else {
		filter = pathfilter.FromRules(ignore.Load(folder, s.defaultIgnoreRules()))
	}
	if pinned != nil {
		filter = pathfilter.Any(filter, pinned)
	}

	m := &metrics.SyncMetrics{}
	changes, err := treediff.Diff(ctx, left, right, treediff.Options{
		Shallow:        opts.Shallow,
		CompareContent: opts.CompareContent,
		Filter:         filter,
		Metrics:        m,
	})
	if err != nil {
		return err
	}
	if opts.AddOnly {
		changes = treediff.FilterAddOnly(changes)
	}
	if err := treediff.ApplyRight(ctx, left, right, changes, m); err != nil {
		return err
	}
	m.Log()
	return nil
}

func (s *Syncer) defaultIgnoreRules() string {
	if s.settings == nil {
		return settings.DefaultIgnoreRules
	}
	return s.settings.Get(settings.KeyDefaultIgnoreRules)
}
