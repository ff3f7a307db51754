package storage

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// ActivateVerity activates a dm-verity device from its data and hash
// partitions, per spec §4.1. At runtime the systemd-veritysetup generator
// activates these at boot from the fstab overlay entry RenderFstab
// produces; this function exists for the stage-time activation the
// storage subsystem performs while populating the new root.
func ActivateVerity(v config.VerityDevice, dataPath, hashPath string) (mappedPath string, err error) {
	cmd := fmt.Sprintf("veritysetup open %s %s %s --no-superblock", dataPath, v.Name, hashPath)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "storage.ActivateVerity",
			fmt.Sprintf("veritysetup open failed for device %q", v.ID), err)
	}
	return fmt.Sprintf("/dev/mapper/%s", v.Name), nil
}
