package store

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/manifest"
	"github.com/pixelgardenlabs/arcmirror/pkg/sharded"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// Remote is a Store backed by a versioned, content-addressed archive rooted
// at a directory. File content lives in compressed, write-once blobs under
// objects/; the tree itself is a snapshot (a "generation") mapping normalized
// paths to entries. Writes mutate an in-memory index and become durable when
// Commit seals a new generation, so the archive is append-only: history is
// never rewritten, only extended.
type Remote struct {
	root     string
	man      *manifest.Content
	writable bool

	index *sharded.Map[treeEntry]

	// commitMu serializes Commit and generation bookkeeping.
	commitMu sync.Mutex
	head     int
	dirty    bool
}

// treeEntry is the archived form of one tree node.
type treeEntry struct {
	Hash    string      `json:"hash,omitempty"` // Content address; empty for directories.
	Size    int64       `json:"size,omitempty"`
	Mode    os.FileMode `json:"mode"`
	ModTime time.Time   `json:"modTime"`
	Dir     bool        `json:"dir,omitempty"`
}

func (e treeEntry) metadata(key string) Metadata {
	return Metadata{
		Path:    key,
		Size:    e.Size,
		Mode:    e.Mode,
		ModTime: e.ModTime,
		Dir:     e.Dir,
	}
}

// CreateRemote initializes a new archive at dir with the given manifest and
// seals its first generation, which contains only the manifest entry.
func CreateRemote(dir string, man *manifest.Content) (*Remote, error) {
	expanded, err := util.ExpandPath(dir)
	if err != nil {
		return nil, err
	}

	for _, sub := range []string{expanded, objectsPath(expanded), generationsPath(expanded)} {
		if err := os.MkdirAll(sub, util.UserWritableDirPerms); err != nil {
			return nil, fmt.Errorf("failed to create archive directory %s: %w", sub, err)
		}
	}

	if err := manifest.Write(expanded, man); err != nil {
		return nil, err
	}

	r := &Remote{
		root:     expanded,
		man:      man,
		writable: !man.ReadOnly,
		index:    sharded.NewMap[treeEntry](),
		head:     0,
	}

	// The descriptor is a normal tree entry so the merge policy can copy it
	// like any other file.
	manifestData, err := man.Encode()
	if err != nil {
		return nil, err
	}
	if err := r.WriteFile(manifest.PathKey, manifestData, util.UserWritableFilePerms, man.CreatedUTC); err != nil {
		return nil, err
	}
	if err := r.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenRemote opens an existing archive rooted at dir and loads its current
// generation into memory. Writability is determined by the manifest's
// readOnly flag.
func OpenRemote(dir string) (*Remote, error) {
	expanded, err := util.ExpandPath(dir)
	if err != nil {
		return nil, err
	}

	man, err := manifest.Read(expanded)
	if err != nil {
		return nil, fmt.Errorf("not a valid archive at %s: %w", expanded, err)
	}

	head, err := readHead(expanded)
	if err != nil {
		return nil, err
	}

	r := &Remote{
		root:     expanded,
		man:      man,
		writable: !man.ReadOnly,
		index:    sharded.NewMap[treeEntry](),
		head:     head,
	}

	if head > 0 {
		gen, err := readGeneration(expanded, head)
		if err != nil {
			return nil, err
		}
		for key, entry := range gen.Entries {
			r.index.Store(key, entry)
		}
	}
	return r, nil
}

// Root returns the archive's root directory.
func (r *Remote) Root() string { return r.root }

// ID returns the archive's identity from its manifest.
func (r *Remote) ID() string { return r.man.ID }

// Manifest returns the archive's descriptor.
func (r *Remote) Manifest() *manifest.Content { return r.man }

// Writable reports whether the archive accepts writes.
func (r *Remote) Writable() bool { return r.writable }

// Head returns the current generation number. Zero means no generation has
// been sealed yet.
func (r *Remote) Head() int {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()
	return r.head
}

// Stat returns metadata for a path, or ErrNotFound.
func (r *Remote) Stat(path string) (Metadata, error) {
	key := util.NormalizePath(path)
	if key == "/" {
		return Metadata{Path: "/", Mode: os.ModeDir | util.UserWritableDirPerms, ModTime: r.man.CreatedUTC, Dir: true}, nil
	}
	entry, ok := r.index.Load(key)
	if !ok {
		return Metadata{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return entry.metadata(key), nil
}

// ReadDir enumerates the direct children of a directory, sorted by path.
func (r *Remote) ReadDir(path string) ([]Metadata, error) {
	key := util.NormalizePath(path)
	if key != "/" {
		entry, ok := r.index.Load(key)
		if !ok {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		if !entry.Dir {
			return nil, fmt.Errorf("%s is not a directory", key)
		}
	}

	var result []Metadata
	r.index.Range(func(childKey string, entry treeEntry) bool {
		if util.ParentPath(childKey) == key {
			result = append(result, entry.metadata(childKey))
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// ReadFile returns the decompressed content of a regular file entry.
func (r *Remote) ReadFile(path string) ([]byte, error) {
	key := util.NormalizePath(path)
	entry, ok := r.index.Load(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if entry.Dir {
		return nil, fmt.Errorf("%s is a directory", key)
	}
	data, err := r.readBlob(entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", key, err)
	}
	return data, nil
}

// WriteFile stores the content as a blob and records the entry in the
// in-memory tree. The change becomes durable on the next Commit.
func (r *Remote) WriteFile(path string, data []byte, mode os.FileMode, modTime time.Time) error {
	if !r.writable {
		return fmt.Errorf("cannot write %s: %w", path, ErrReadOnly)
	}
	key := util.NormalizePath(path)

	hash, err := r.writeBlob(data)
	if err != nil {
		return fmt.Errorf("failed to store content of %s: %w", key, err)
	}

	r.ensureParentDirs(key, modTime)
	r.index.Store(key, treeEntry{
		Hash:    hash,
		Size:    int64(len(data)),
		Mode:    mode.Perm(),
		ModTime: modTime,
	})
	r.markDirty()
	return nil
}

// Mkdir records a directory entry (and any missing parents).
func (r *Remote) Mkdir(path string) error {
	if !r.writable {
		return fmt.Errorf("cannot create directory %s: %w", path, ErrReadOnly)
	}
	key := util.NormalizePath(path)
	if key == "/" {
		return nil
	}
	now := time.Now().UTC()
	r.ensureParentDirs(key, now)
	if _, exists := r.index.Load(key); !exists {
		r.index.Store(key, treeEntry{Mode: util.UserWritableDirPerms, ModTime: now, Dir: true})
		r.markDirty()
	}
	return nil
}

// MkdirWithMetadata records a directory entry carrying explicit metadata.
// The apply stage uses it so directory modification times survive a sync.
func (r *Remote) MkdirWithMetadata(path string, mode os.FileMode, modTime time.Time) error {
	if !r.writable {
		return fmt.Errorf("cannot create directory %s: %w", path, ErrReadOnly)
	}
	key := util.NormalizePath(path)
	if key == "/" {
		return nil
	}
	r.ensureParentDirs(key, modTime)
	r.index.Store(key, treeEntry{Mode: mode.Perm(), ModTime: modTime, Dir: true})
	r.markDirty()
	return nil
}

// Remove deletes a path and all of its descendants from the tree. Blobs stay
// in the object store; Prune reclaims unreferenced ones.
func (r *Remote) Remove(path string) error {
	if !r.writable {
		return fmt.Errorf("cannot remove %s: %w", path, ErrReadOnly)
	}
	key := util.NormalizePath(path)
	if key == "/" {
		return fmt.Errorf("refusing to remove archive root")
	}

	var doomed []string
	r.index.Range(func(childKey string, _ treeEntry) bool {
		if util.IsPathWithin(key, childKey) {
			doomed = append(doomed, childKey)
		}
		return true
	})
	for _, childKey := range doomed {
		r.index.Delete(childKey)
	}
	if len(doomed) > 0 {
		r.markDirty()
	}
	return nil
}

// ensureParentDirs records directory entries for every missing ancestor of key.
func (r *Remote) ensureParentDirs(key string, modTime time.Time) {
	for parent := util.ParentPath(key); parent != "/"; parent = util.ParentPath(parent) {
		if _, exists := r.index.Load(parent); exists {
			return
		}
		r.index.Store(parent, treeEntry{Mode: util.UserWritableDirPerms, ModTime: modTime, Dir: true})
	}
}

func (r *Remote) markDirty() {
	r.commitMu.Lock()
	r.dirty = true
	r.commitMu.Unlock()
}

var _ Store = (*Remote)(nil)
var _ Committer = (*Remote)(nil)
