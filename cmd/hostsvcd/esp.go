package main

import (
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

// findEspMountPath returns the configured mount path of whichever
// partition was declared with type "esp", joined under root (the staged
// newroot's scratch path during Stage/Finalize, or "" for the live
// system's real mount after a reboot). Mirrors
// subsystems/boot.findEspFilesystem/resolveEspRoot, duplicated here since
// that helper is unexported and this is the one other place the engine
// needs to locate the ESP on disk.
func findEspMountPath(cfg *config.HostConfiguration, root string) (string, bool) {
	espIDs := make(map[string]bool)
	for _, d := range cfg.Disks {
		for _, p := range d.Partitions {
			if strings.EqualFold(p.Type, "esp") {
				espIDs[p.ID] = true
			}
		}
	}
	for _, fs := range cfg.Filesystems {
		if espIDs[fs.DeviceID] && fs.Mount != nil {
			return filepath.Join(root, fs.Mount.Path), true
		}
	}
	return "", false
}
