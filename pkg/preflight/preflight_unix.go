//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// platformValidateMountPoint rejects paths that look like mount points but
// still reside on the root filesystem, which means the expected drive is not
// actually mounted and writes would land in a ghost directory.
func platformValidateMountPoint(path string) error {
	// Paths under the home directory are intentional local targets.
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(path, home) {
		return nil
	}
	// Only paths under the conventional mount roots are suspect.
	if !strings.HasPrefix(path, "/mnt/") && !strings.HasPrefix(path, "/media/") && !strings.HasPrefix(path, "/Volumes/") {
		return nil
	}

	rootInfo, err := os.Stat("/")
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	rootStat, ok := rootInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	pathInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat target path: %w", err)
	}
	pathStat, ok := pathInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	// The same device id as "/" means nothing is mounted there.
	if pathStat.Dev == rootStat.Dev && path != "/" {
		return fmt.Errorf("path %s is on the root filesystem; ensure the drive is mounted", path)
	}
	return nil
}
