// Package esp manages the EFI System Partition's directory scheme: per-
// install boot-file directories, the firmware-fallback directory, and the
// UKI directory, per SPEC_FULL §4.3. Grounded on the teacher's
// internal/image/imagesign/imagesign.go for the espDir/EFI/Linux/EFI/BOOT
// path shape and its write-then-rename atomic-replace idiom, generalized
// from "sign one fixed UKI/bootloader pair" to "stage an arbitrary install
// index's boot files and swap the firmware's view of them."
package esp

import (
	"fmt"
	"path/filepath"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

// Side identifies which A/B directory prefix an install index uses.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) suffix() string {
	if s == SideB {
		return "b"
	}
	return "a"
}

// InstallDirName returns the per-install directory name for index i and
// side, e.g. AZLA0 or AZLB3.
func InstallDirName(i int, side Side) string {
	if side == SideB {
		return fmt.Sprintf("AZLB%d", i)
	}
	return fmt.Sprintf("AZLA%d", i)
}

// InstallDir returns the absolute path of the per-install directory under
// <espRoot>/EFI/.
func InstallDir(espRoot string, i int, side Side) string {
	return filepath.Join(espRoot, "EFI", InstallDirName(i, side))
}

// FallbackDir is the firmware-default directory the shim/GRUB binaries are
// copied into to survive a lost signed entry.
func FallbackDir(espRoot string) string {
	return filepath.Join(espRoot, "EFI", "BOOT")
}

// UkiDir holds UKI files named vmlinuz-<order-index>-azl[a|b]<install-index>.efi.
func UkiDir(espRoot string) string {
	return filepath.Join(espRoot, "EFI", "Linux")
}

// UkiFileName renders the canonical UKI filename for an order index, side,
// and install index.
func UkiFileName(orderIndex int, side Side, installIndex int) string {
	return fmt.Sprintf("vmlinuz-%d-azl%s%d.efi", orderIndex, side.suffix(), installIndex)
}

// AbSideFromStatus maps the currently active A/B volume to the Side the
// next update should target (the inactive side), defaulting to A for
// clean install (ab_active_volume == None).
func AbSideFromStatus(active config.AbActiveVolume) Side {
	if active == config.AbA {
		return SideB
	}
	return SideA
}
