package esp

import (
	"os"
	"path/filepath"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// FallbackMode selects which install directory's boot files get copied into
// the firmware-default EFI/BOOT directory, per spec §4.3's fallback-copy
// rule.
type FallbackMode int

const (
	// Rollback copies the currently-active install's boot files into
	// EFI/BOOT, keeping the firmware default pointed at the known-good
	// side. Applies only to A/B update; a clean install has no prior
	// active side to fall back to.
	Rollback FallbackMode = iota
	// Rollforward copies the newly staged install's boot files into
	// EFI/BOOT, so a firmware that ignores the signed boot entry still
	// lands on the new install. Applies to both clean install and A/B
	// update.
	Rollforward
)

// SyncFallback copies the three boot files (grub.cfg, grubx64.efi,
// bootx64.efi) from the chosen install directory into EFI/BOOT, atomically
// per file. isCleanInstall suppresses Rollback, which has no source
// directory on a clean install.
func SyncFallback(espRoot string, mode FallbackMode, activeIndex, activeSide, nextIndex, nextSide int, isCleanInstall bool) error {
	if mode == Rollback && isCleanInstall {
		return nil
	}

	var srcDir string
	if mode == Rollback {
		srcDir = InstallDir(espRoot, activeIndex, Side(activeSide))
	} else {
		srcDir = InstallDir(espRoot, nextIndex, Side(nextSide))
	}

	if _, err := os.Stat(srcDir); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.SyncFallback", "fallback source install directory missing", err)
	}

	destDir := FallbackDir(espRoot)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.SyncFallback", "failed to create fallback directory", err)
	}

	for _, name := range []string{"grub.cfg", "grubx64.efi", "bootx64.efi"} {
		src := filepath.Join(srcDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := atomicCopy(src, filepath.Join(destDir, name)); err != nil {
			return err
		}
	}

	return nil
}
