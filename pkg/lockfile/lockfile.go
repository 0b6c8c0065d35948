// Package lockfile serializes mutating commands on one archive across
// processes. The lock is a JSON heartbeat file at the archive root: the
// holder refreshes it periodically, and a lock whose heartbeat stopped long
// enough ago may be taken over.
package lockfile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// FileName is the lock file created at the archive root. The '~' prefix
// marks it as transient.
const FileName = ".~arcmirror.lock"

// Info is the content of the lock file.
type Info struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	UpdatedUTC time.Time `json:"updatedUTC"`
	// Nonce disambiguates concurrent takeover attempts of a stale lock.
	Nonce string `json:"nonce,omitempty"`
	Tool  string `json:"tool"`
}

// ErrLockActive is returned when another live process holds the lock.
type ErrLockActive struct {
	PID       int64
	Hostname  string
	TimeSince time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("archive is locked by PID %d on host %s, last heartbeat %s ago",
		e.PID, e.Hostname, e.TimeSince.Truncate(time.Second))
}

// ErrLostRace is returned when another process wins a stale-lock takeover.
var ErrLostRace = errors.New("lost race during stale lock takeover")

// Vars so tests can shorten the timing.
var (
	heartbeatInterval = 30 * time.Second
	staleTimeout      = 3 * heartbeatInterval
)

// Lock is a held archive lock. Release it when the command finishes.
type Lock struct {
	path   string
	info   Info
	cancel context.CancelFunc

	mu   sync.Mutex
	held bool
}

// Acquire locks the archive rooted at dirPath. It returns *ErrLockActive
// when another live process holds the lock; a stale or corrupt lock is taken
// over.
func Acquire(ctx context.Context, dirPath, tool string) (*Lock, error) {
	lockPath := filepath.Join(dirPath, FileName)

	for attempt := 0; attempt < 3; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lock, err := tryCreate(lockPath, tool)
		if err == nil {
			return lock.start(), nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		info, readErr := readInfo(lockPath)
		if readErr == nil {
			elapsed := time.Since(info.UpdatedUTC)
			if elapsed < staleTimeout {
				return nil, &ErrLockActive{PID: info.PID, Hostname: info.Hostname, TimeSince: elapsed}
			}
			plog.Warn("Found stale archive lock, attempting takeover", "pid", info.PID, "age", elapsed)
		} else if os.IsNotExist(readErr) {
			// The holder released between our create attempt and the read.
			continue
		} else {
			plog.Warn("Found unreadable archive lock, treating as stale", "path", lockPath, "error", readErr)
		}

		lock, err = takeover(lockPath, tool)
		if err != nil {
			if !errors.Is(err, ErrLostRace) {
				plog.Warn("Archive lock takeover failed, retrying", "error", err)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return lock.start(), nil
	}
	return nil, fmt.Errorf("failed to acquire archive lock after repeated contention")
}

// Release stops the heartbeat and removes the lock file. Safe to call more
// than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.cancel()
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
	}
	l.held = false
}

func (l *Lock) start() *Lock {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.heartbeat(ctx)
	return l
}

func (l *Lock) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.info.UpdatedUTC = time.Now().UTC()
			if err := writeInfoAtomic(l.path, l.info); err != nil {
				// Keep ticking; the next beat may succeed.
				plog.Warn("Lock heartbeat failed", "path", l.path, "error", err)
			}
		}
	}
}

// tryCreate acquires via O_EXCL, which only succeeds for the first creator.
func tryCreate(lockPath, tool string) (*Lock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := newInfo(tool)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock content: %w", err)
	}
	return &Lock{path: lockPath, info: info, held: true}, nil
}

// takeover replaces a stale lock atomically, then reads the file back: only
// the process whose nonce survived owns the lock.
func takeover(lockPath, tool string) (*Lock, error) {
	info, err := newInfo(tool)
	if err != nil {
		return nil, err
	}
	if err := writeInfoAtomic(lockPath, info); err != nil {
		return nil, err
	}
	current, err := readInfo(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read back lock after takeover: %w", err)
	}
	if current.PID != info.PID || current.Nonce != info.Nonce {
		return nil, ErrLostRace
	}
	return &Lock{path: lockPath, info: info, held: true}, nil
}

func newInfo(tool string) (Info, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Info{}, fmt.Errorf("failed to generate lock nonce: %w", err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		return Info{}, err
	}
	return Info{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		UpdatedUTC: time.Now().UTC(),
		Nonce:      hex.EncodeToString(nonce),
		Tool:       tool,
	}, nil
}

// writeInfoAtomic renames a temp file over the lock path, so the file is
// never observed empty or half-written.
func writeInfoAtomic(lockPath string, info Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(lockPath), filepath.Base(lockPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp lock file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp lock file: %w", err)
	}
	if err := os.Rename(tmpPath, lockPath); err != nil {
		return fmt.Errorf("failed to move lock file into place: %w", err)
	}
	tmpPath = ""
	return nil
}

func readInfo(lockPath string) (Info, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("lock file is corrupt: %w", err)
	}
	return info, nil
}
