package storage

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// FormatSwap runs mkswap against devicePath. Per spec §4.1 ("Swap: mkswap
// on clean install only (A/B never re-formats swap)"), callers must not
// invoke this for any servicing type other than a clean install.
func FormatSwap(sw config.SwapDevice, devicePath string, servicingType config.ServicingType) error {
	if servicingType != config.CleanInstall {
		return enginerr.New(enginerr.Internal, "storage.FormatSwap",
			fmt.Sprintf("refusing to reformat swap device %q outside of a clean install (servicing type %s)", sw.DeviceID, servicingType))
	}
	if _, err := shell.ExecCmd(fmt.Sprintf("mkswap %s", devicePath), true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.FormatSwap",
			fmt.Sprintf("mkswap failed for device %q", sw.DeviceID), err)
	}
	return nil
}
