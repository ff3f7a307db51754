package orchestrator

import (
	"os"
	"strings"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// cmdlinePath and cleanInstallOverrideFile are vars, not consts, so tests
// can redirect them to a fixture instead of the real host paths.
var cmdlinePath = "/proc/cmdline"

// cleanInstallOverrideFile is the well-known override spec §4.4 allows an
// operator to create under /run to bypass the live-medium safety check,
// for development and test environments that intentionally clean-install
// from a live image.
var cleanInstallOverrideFile = "/run/hostsvc-allow-clean-install"

// CheckCleanInstallSafety refuses a clean install unless the operator
// override file is present, the system is booted from a live medium, or
// the configuration declares partitions for adoption, per spec §4.4: a
// clean install run against an already-installed, non-adopting disk would
// destroy the running system's own partition table, so any of those three
// conditions (override, live medium, adoption) is what makes it safe.
func CheckCleanInstallSafety(cfg *config.HostConfiguration) error {
	if _, err := os.Stat(cleanInstallOverrideFile); err == nil {
		return nil
	}

	booted, err := bootedFromLiveMedium()
	if err != nil {
		return err
	}
	if booted || hasAdoptedPartitions(cfg) {
		return nil
	}

	return enginerr.New(enginerr.Initialization, "orchestrator.CheckCleanInstallSafety",
		"refusing clean install: system is not booted from a live medium and configuration declares no adopted partitions")
}

func bootedFromLiveMedium() (bool, error) {
	raw, err := os.ReadFile(cmdlinePath)
	if err != nil {
		return false, enginerr.Wrap(enginerr.Initialization, "orchestrator.bootedFromLiveMedium",
			"failed to read /proc/cmdline", err)
	}
	cmdline := string(raw)
	return strings.Contains(cmdline, "root=/dev/ram0") || strings.Contains(cmdline, "root=live:LABEL=CDROM"), nil
}

func hasAdoptedPartitions(cfg *config.HostConfiguration) bool {
	for _, d := range cfg.Disks {
		if len(d.AdoptedPartitions) > 0 {
			return true
		}
	}
	return false
}

// CheckAbActiveVolumeGuard re-derives the live active A/B side from the
// kernel's actual root device and cross-checks it against the persisted
// HostStatus, per spec §4.4's "A/B active-volume guard." Any disagreement
// means firmware silently rolled back since the last servicing cycle and
// is fatal.
func CheckAbActiveVolumeGuard(persisted config.AbActiveVolume, liveActive config.AbActiveVolume) error {
	if persisted == config.AbNone {
		return nil
	}
	if persisted != liveActive {
		return enginerr.New(enginerr.Servicing, "orchestrator.CheckAbActiveVolumeGuard",
			"live active A/B side disagrees with persisted HostStatus; firmware may have rolled back since the last servicing cycle")
	}
	return nil
}
