package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// Local is a Store rooted at a directory on the ordinary filesystem.
type Local struct {
	root string
}

// NewLocal opens a Local store rooted at dir. The directory must exist.
func NewLocal(dir string) (*Local, error) {
	expanded, err := util.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("could not resolve local root %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("local root %s: %w", abs, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not stat local root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local root %s is not a directory", abs)
	}

	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

// Writable always reports true; filesystem permission failures surface as
// write errors on the individual operations instead.
func (l *Local) Writable() bool { return true }

// abs maps a normalized path key onto an absolute filesystem path under root.
// The key is cleaned by normalization, so it cannot escape the root.
func (l *Local) abs(key string) string {
	key = util.NormalizePath(key)
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// Stat returns metadata for a path, or ErrNotFound.
// Lstat is used so symlinks describe themselves, not their targets.
func (l *Local) Stat(path string) (Metadata, error) {
	key := util.NormalizePath(path)
	info, err := os.Lstat(l.abs(key))
	if os.IsNotExist(err) {
		return Metadata{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return metadataFromFileInfo(key, info), nil
}

// ReadDir enumerates the direct children of a directory, sorted by name.
func (l *Local) ReadDir(path string) ([]Metadata, error) {
	key := util.NormalizePath(path)
	entries, err := os.ReadDir(l.abs(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", key, err)
	}

	result := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // Entry vanished between ReadDir and Info.
			}
			return nil, fmt.Errorf("failed to stat %s/%s: %w", key, entry.Name(), err)
		}
		childKey := util.NormalizePath(key + "/" + entry.Name())
		result = append(result, metadataFromFileInfo(childKey, info))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// ReadFile returns the content of a regular file.
func (l *Local) ReadFile(path string) ([]byte, error) {
	key := util.NormalizePath(path)
	data, err := os.ReadFile(l.abs(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// WriteFile creates or overwrites a file atomically: content goes to a
// temporary file in the destination directory, metadata is applied, then the
// temporary file is renamed into place.
func (l *Local) WriteFile(path string, data []byte, mode os.FileMode, modTime time.Time) error {
	key := util.NormalizePath(path)
	absPath := l.abs(key)
	dir := filepath.Dir(absPath)

	if err := os.MkdirAll(dir, util.WithUserWritePermission(util.UserWritableDirPerms)); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".arcmirror-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Chmod(util.WithUserWritePermission(mode.Perm())); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", key, err)
	}
	// Close flushes to disk and MUST precede Chtimes, since closing may
	// update the modification time.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file for %s: %w", key, err)
	}
	if err := os.Chtimes(tmpPath, modTime, modTime); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	tmpPath = ""
	return nil
}

// Mkdir ensures a directory and its parents exist.
func (l *Local) Mkdir(path string) error {
	key := util.NormalizePath(path)
	if err := os.MkdirAll(l.abs(key), util.WithUserWritePermission(util.UserWritableDirPerms)); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", key, err)
	}
	return nil
}

// MkdirWithMetadata ensures a directory exists and stamps it with the given
// mode and modification time so directory metadata converges after a sync.
func (l *Local) MkdirWithMetadata(path string, mode os.FileMode, modTime time.Time) error {
	key := util.NormalizePath(path)
	absPath := l.abs(key)
	if err := os.MkdirAll(absPath, util.WithUserWritePermission(mode.Perm())); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", key, err)
	}
	if err := os.Chtimes(absPath, modTime, modTime); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", key, err)
	}
	return nil
}

// Remove deletes a path recursively. A missing path is not an error.
func (l *Local) Remove(path string) error {
	key := util.NormalizePath(path)
	if key == "/" {
		return fmt.Errorf("refusing to remove local store root")
	}
	if err := os.RemoveAll(l.abs(key)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func metadataFromFileInfo(key string, info os.FileInfo) Metadata {
	return Metadata{
		Path:    key,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Dir:     info.IsDir(),
	}
}

var _ Store = (*Local)(nil)
