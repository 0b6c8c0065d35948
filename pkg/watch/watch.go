// Package watch turns filesystem change notifications into coalesced
// folder-to-archive syncs. Change events arrive in bursts for a single
// logical edit, so each event restarts a quiescence timer and only the last
// one in a burst triggers a sync.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
)

// DefaultDebounce is the quiescence window between the last observed change
// and the sync it triggers.
const DefaultDebounce = time.Second

// FolderSyncer runs the folder-to-archive direction. Satisfied by
// syncer.Syncer.
type FolderSyncer interface {
	SyncFolderToArchive(ctx context.Context, a *syncer.Archive, opts syncer.Options) error
}

// session tracks one watched archive. At most one timer and one
// subscription exist per archive at any time.
type session struct {
	archive     *syncer.Archive
	timer       *time.Timer
	unsubscribe func() error
}

// Controller owns the watch sessions of all attached archives.
type Controller struct {
	syncer FolderSyncer
	delay  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewController creates a Controller syncing through s after delay of
// quiescence. A non-positive delay selects DefaultDebounce.
func NewController(s FolderSyncer, delay time.Duration) *Controller {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Controller{
		syncer:   s,
		delay:    delay,
		sessions: make(map[string]*session),
	}
}

// Attach subscribes to change notifications under the archive's linked
// folder. Attaching an already-watched archive is a no-op.
func (c *Controller) Attach(a *syncer.Archive) error {
	if a.LinkPath == "" {
		return fmt.Errorf("archive %s has no linked folder to watch", a.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, watching := c.sessions[a.ID]; watching {
		return nil
	}

	local, err := store.NewLocal(a.LinkPath)
	if err != nil {
		return fmt.Errorf("failed to open folder for watching: %w", err)
	}
	unsubscribe, err := local.Watch("/", func(changedPath string) {
		c.onChange(a.ID, changedPath)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.LinkPath, err)
	}
	c.sessions[a.ID] = &session{archive: a, unsubscribe: unsubscribe}
	plog.Info("Watching folder", "archive", a.ID, "path", a.LinkPath)
	return nil
}

// Detach cancels any pending sync timer and removes the watch subscription.
// Detaching an unwatched archive is a no-op. A sync already past its timer
// runs to completion.
func (c *Controller) Detach(archiveID string) error {
	c.mu.Lock()
	sess, watching := c.sessions[archiveID]
	if watching {
		delete(c.sessions, archiveID)
		if sess.timer != nil {
			sess.timer.Stop()
		}
	}
	c.mu.Unlock()
	if !watching {
		return nil
	}
	if err := sess.unsubscribe(); err != nil {
		return fmt.Errorf("failed to stop watching archive %s: %w", archiveID, err)
	}
	plog.Info("Stopped watching folder", "archive", archiveID)
	return nil
}

// Close detaches every watched archive.
func (c *Controller) Close() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		if err := c.Detach(id); err != nil {
			plog.Warn("Failed to detach watcher", "archive", id, "error", err)
		}
	}
}

// Pending reports whether a folder-originated sync is queued or running for
// the archive. The syncer consults this before an archive-to-folder sync.
func (c *Controller) Pending(archiveID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, watching := c.sessions[archiveID]
	return watching && sess.timer != nil
}

// onChange restarts the debounce timer, so only the last event of a burst
// survives to trigger a sync.
func (c *Controller) onChange(archiveID, changedPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, watching := c.sessions[archiveID]
	if !watching {
		return
	}
	plog.Debug("Folder changed", "archive", archiveID, "path", changedPath)
	if sess.timer != nil {
		sess.timer.Stop()
	}
	sess.timer = time.AfterFunc(c.delay, func() {
		c.fire(archiveID)
	})
}

// fire runs the coalesced sync. The notification only names one changed
// subpath, not its extent, so the sync always compares at full depth.
func (c *Controller) fire(archiveID string) {
	c.mu.Lock()
	sess, watching := c.sessions[archiveID]
	if !watching {
		c.mu.Unlock()
		return
	}
	archive := sess.archive
	fired := sess.timer
	c.mu.Unlock()

	opts := syncer.NewOptions()
	opts.Shallow = false
	if err := c.syncer.SyncFolderToArchive(context.Background(), archive, opts); err != nil {
		// No caller to report to; both sides stay unconverged until the
		// next change event.
		plog.Warn("Watch-triggered sync failed", "archive", archiveID, "error", err)
	}

	c.mu.Lock()
	if sess, watching := c.sessions[archiveID]; watching && sess.timer == fired {
		sess.timer = nil
	}
	c.mu.Unlock()
}
