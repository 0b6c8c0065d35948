// Package preflight provides validation checks that run before an operation
// begins. The checks are stateless and never mutate the system; they exist
// to produce friendlier errors than letting the operation fail halfway in.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// ErrProtectedPath marks a candidate sync folder that collides with a
// reserved OS directory.
var ErrProtectedPath = errors.New("path is a protected system directory")

// ErrNotFound marks a candidate path that does not exist.
var ErrNotFound = errors.New("path does not exist")

// ErrNotADirectory marks a candidate sync root that is not a directory.
var ErrNotADirectory = errors.New("path is not a directory")

// protectedSubdirs are the well-known user folders, relative to the home
// directory, that must never become a sync root. Syncing one of these risks
// mass deletion of personal files on the first folder-to-archive run.
var protectedSubdirs = []string{
	"Desktop",
	"Documents",
	"Downloads",
	"Music",
	"Pictures",
	"Videos",
}

// CheckSyncFolder validates a candidate local sync folder. It rejects the
// user's home directory and its well-known subfolders, paths that do not
// exist, and paths that are not directories.
func CheckSyncFolder(path string) error {
	expanded, err := util.ExpandPath(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return fmt.Errorf("cannot resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)

	for _, protected := range protectedPaths() {
		if abs == protected {
			return fmt.Errorf("%s: %w", abs, ErrProtectedPath)
		}
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", abs, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", abs, ErrNotADirectory)
	}
	return nil
}

func protectedPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}
	paths := []string{filepath.Clean(home)}
	for _, sub := range protectedSubdirs {
		paths = append(paths, filepath.Join(home, sub))
	}
	return paths
}

// CheckArchiveTargetAccessible verifies that a directory intended to hold an
// archive is usable before any write happens. If the target exists it must
// be a directory; if it does not, its parent must be accessible so creation
// can succeed. On Unix the check also detects "ghost" mount points: a target
// under a mount path that still resides on the root filesystem means the
// drive is not actually mounted.
func CheckArchiveTargetAccessible(targetPath string) error {
	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		// Walk up to the deepest existing ancestor and validate that one.
		ancestor := targetPath
		for {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				break
			}
			ancestor = parent
			if _, err := os.Stat(ancestor); err == nil {
				break
			}
		}
		if err := platformValidateMountPoint(ancestor); err != nil {
			return err
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", targetPath, ErrNotADirectory)
	}
	return platformValidateMountPoint(targetPath)
}
