// Package store defines the file-tree endpoint abstraction the sync engine
// operates on, with two concrete variants: Local, rooted at a directory on
// the ordinary filesystem, and Remote, rooted at a versioned content-addressed
// archive. The engine borrows Store references per call and never owns their
// lifecycle.
//
// All paths crossing the Store boundary are normalized keys: forward slashes,
// rooted with a leading "/" (see util.NormalizePath).
package store

import (
	"errors"
	"os"
	"time"
)

// ErrNotFound is returned by Stat, ReadDir and ReadFile when a path does not
// exist in the store.
var ErrNotFound = errors.New("path not found in store")

// ErrReadOnly is returned by mutating operations on a non-writable store.
var ErrReadOnly = errors.New("store is not writable")

// Metadata describes a single tree entry.
type Metadata struct {
	Path    string // Normalized path key.
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	Dir     bool
}

// IsRegular reports whether the entry is a regular file.
func (m Metadata) IsRegular() bool {
	return !m.Dir && m.Mode.IsRegular()
}

// Store is the minimal capability interface both endpoints implement.
// Mutating operations are only valid on stores whose Writable reports true.
type Store interface {
	// Root returns the endpoint's root location, for logging and identity.
	Root() string

	// Writable reports whether the caller may mutate this store.
	Writable() bool

	// Stat returns metadata for a path, or ErrNotFound.
	Stat(path string) (Metadata, error)

	// ReadDir enumerates the direct children of a directory path.
	ReadDir(path string) ([]Metadata, error)

	// ReadFile returns the full content of a regular file.
	ReadFile(path string) ([]byte, error)

	// WriteFile creates or overwrites a regular file, creating parent
	// directories as needed. The stored entry carries the given mode and
	// modification time so that metadata comparison converges after a sync.
	WriteFile(path string, data []byte, mode os.FileMode, modTime time.Time) error

	// Mkdir ensures a directory (and its parents) exist.
	Mkdir(path string) error

	// Remove deletes a path recursively. Removing a missing path is not an error.
	Remove(path string) error
}

// Watcher is the optional change-notification capability. Only the Local
// store implements it.
type Watcher interface {
	// Watch subscribes to change notifications below a path. The callback
	// receives the normalized path of the changed entry. The returned
	// function cancels the subscription.
	Watch(path string, onChange func(changedPath string)) (func() error, error)
}

// Committer is the optional batch-sealing capability. The Remote store
// accumulates writes in memory and persists them as a new generation when
// Commit is called; the apply stage commits after each successful batch.
type Committer interface {
	Commit() error
}
