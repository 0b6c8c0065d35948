package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
	"github.com/pixelgardenlabs/arcmirror/pkg/watch"
)

// pendingProxy breaks the construction cycle between the syncer and the
// watch controller: the syncer needs a PendingChecker before the controller
// exists.
type pendingProxy struct {
	c *watch.Controller
}

func (p *pendingProxy) Pending(archiveID string) bool {
	if p.c == nil {
		return false
	}
	return p.c.Pending(archiveID)
}

// RunWatch handles the logic for the 'watch' command. It attaches a
// filesystem watcher to every link marked for watching and blocks until the
// context is canceled.
func RunWatch(ctx context.Context, r *flagparse.Request) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ApplyLogging(r, &cfg)

	debounceSeconds := cfg.Engine.DebounceSeconds
	if r.Set("debounce-seconds") {
		debounceSeconds = r.DebounceSeconds
	}
	debounce := time.Duration(debounceSeconds) * time.Second

	proxy := &pendingProxy{}
	s := newSyncer(proxy)
	controller := watch.NewController(s, debounce)
	proxy.c = controller
	defer controller.Close()

	unsubscribe := s.Subscribe(func(ev syncer.Event) {
		plog.Info("Watched folder synced.", "id", ev.ArchiveID, "direction", string(ev.Direction))
	})
	defer unsubscribe()

	attached := 0
	for _, link := range cfg.Links {
		if !link.Watch {
			continue
		}
		remote, err := store.OpenRemote(link.ArchivePath)
		if err != nil {
			plog.Warn("Skipping unreachable archive.", "id", link.ArchiveID, "reason", err)
			continue
		}
		a := &syncer.Archive{ID: remote.ID(), Store: remote, LinkPath: link.FolderPath}
		if err := controller.Attach(a); err != nil {
			plog.Warn("Could not watch folder.", "folder", link.FolderPath, "reason", err)
			continue
		}
		plog.Info("Watching folder.", "folder", link.FolderPath, "id", a.ID)
		attached++
	}
	if attached == 0 {
		return fmt.Errorf("no links are marked for watching; use 'arcmirror link -watch'")
	}

	plog.Info(buildinfo.Name+" watching for changes.", "links", attached, "debounce", debounce)
	<-ctx.Done()
	plog.Info(buildinfo.Name + " watch stopped.")
	return nil
}
