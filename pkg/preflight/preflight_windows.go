//go:build windows

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// platformValidateMountPoint verifies the drive or network share root for a
// path exists, e.g. "Z:\" for "Z:\archives". A missing volume root means the
// drive is disconnected.
func platformValidateMountPoint(path string) error {
	volume := filepath.VolumeName(path)
	if volume == "" {
		return nil
	}
	if !strings.HasSuffix(volume, string(filepath.Separator)) {
		volume += string(filepath.Separator)
	}
	volume = filepath.Clean(volume)
	if _, err := os.Stat(volume); os.IsNotExist(err) {
		return fmt.Errorf("volume root does not exist: %s; ensure the drive is connected", volume)
	}
	return nil
}
