// Package boot wraps engine/esp and engine/bootentries behind
// orchestrator.Subsystem: it stages shim/GRUB or UKI boot files into a
// per-install ESP directory, syncs the UEFI fallback directory, and (for
// UKI builds) commits the boot-order rename Finalize later promotes or
// rolls back. Grounded on spec §4.3's directory scheme and staging rules.
package boot

import (
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/esp"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// Subsystem deploys boot files in the registry's "boot" slot.
type Subsystem struct{}

func New() *Subsystem { return &Subsystem{} }

func (s *Subsystem) Name() string { return "boot" }

// Propose never drives servicing-type selection on its own: boot
// deployment follows whatever the storage subsystem already proposed.
func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	return config.NoActive, nil
}

// Validate checks that a declared UKI fallback mode, if any, is one of
// the two recognized values.
func (s *Subsystem) Validate(ec *context.EngineContext) error {
	fm := ec.NewSpec.Uki.FallbackMode
	if fm != "" && fm != config.FallbackRollback && fm != config.FallbackRollforward {
		return enginerr.New(enginerr.InvalidInput, "boot.Validate",
			"unrecognized uki fallbackMode "+string(fm))
	}
	return nil
}

// Prepare has nothing to do: every boot operation needs a resolved ESP
// mount point, which only exists once Provision is called with newRoot.
func (s *Subsystem) Prepare(ec *context.EngineContext) error { return nil }

// Provision stages this servicing action's boot files into the ESP, per
// spec §4.3's non-UKI and UKI stages, then syncs the firmware-fallback
// directory. It is a no-op for in-place servicing (no newroot, nothing
// restaged) and when the spec carries no OS image or no ESP partition.
func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error {
	if newRoot == "" || ec.Image == nil {
		return nil
	}
	if ec.ServicingType != config.CleanInstall && ec.ServicingType != config.AbUpdate {
		return nil
	}

	espRoot, _, ok, err := resolveEspRoot(ec, newRoot)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	targetIndex, side, err := allocateTargetInstall(ec, espRoot)
	if err != nil {
		return err
	}

	mountPoint, err := stageImageScratch(ec, newRoot)
	if err != nil {
		return err
	}
	defer esp.UnmountScratchVfat(mountPoint)

	if ec.NewSpec.Uki.Enabled {
		if err := esp.StageUki(mountPoint, espRoot); err != nil {
			return err
		}
		// The boot-order rename is committed here, in Provision, rather
		// than in Configure: when UKI and verity are both active the
		// orchestrator skips every subsystem's configure phase entirely
		// (spec §9), and the firmware boot-order commit must still
		// happen regardless.
		stagedName, err := esp.CommitStagedUki(espRoot, side, targetIndex)
		if err != nil {
			return err
		}
		ec.StagedUkiFileName = stagedName
	} else {
		destDir := esp.InstallDir(espRoot, targetIndex, side)
		requireNoprefix := !ec.NewSpec.InternalParam("disableGrubNoprefixCheck")
		if err := esp.StageNonUkiBootFiles(mountPoint, destDir, requireNoprefix); err != nil {
			return err
		}
	}

	return syncFallback(ec, espRoot, targetIndex, side)
}

// Configure has no boot-specific work: the UKI boot-order rename is
// committed eagerly in Provision so it still runs when the orchestrator
// skips the configure phase for a UKI+verity build (spec §9).
func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error { return nil }

// allocateTargetInstall picks this servicing action's install index and
// A/B side: a fresh index (recorded onto ec, from which the orchestrator
// persists it into the host status) starting at side A for clean install,
// or the unchanged index on the currently inactive side for an A/B update.
// Called exactly once per stage, from Provision, since a second allocation
// could land on a different index once Provision's directory exists on
// disk.
func allocateTargetInstall(ec *context.EngineContext, espRoot string) (int, esp.Side, error) {
	if ec.ServicingType == config.CleanInstall {
		idx, err := esp.AllocateInstallIndex(espRoot)
		if err != nil {
			return 0, 0, err
		}
		ec.InstallIndex = idx
		return idx, esp.SideA, nil
	}
	return ec.InstallIndex, targetSide(ec), nil
}

// targetSide reports the A/B side this servicing action writes to,
// without touching the install index: side A for clean install, the
// currently inactive side otherwise.
func targetSide(ec *context.EngineContext) esp.Side {
	if ec.ServicingType == config.CleanInstall {
		return esp.SideA
	}
	return esp.AbSideFromStatus(ec.AbActiveVolume)
}

// resolveEspRoot finds the ESP partition's declared mount path and joins
// it under root, returning ok=false when the spec declares no ESP
// partition (a headless or test configuration with no boot deployment).
func resolveEspRoot(ec *context.EngineContext, root string) (espRoot, mountPath string, ok bool, err error) {
	fs, found := findEspFilesystem(ec.NewSpec)
	if !found || fs.Mount == nil {
		return "", "", false, nil
	}
	return filepath.Join(root, fs.Mount.Path), fs.Mount.Path, true, nil
}

// findEspFilesystem returns the Filesystem entry bound to whichever
// partition was declared with type "esp".
func findEspFilesystem(spec *config.HostConfiguration) (*config.Filesystem, bool) {
	espIDs := make(map[string]bool)
	for _, d := range spec.Disks {
		for _, p := range d.Partitions {
			if strings.EqualFold(p.Type, "esp") {
				espIDs[p.ID] = true
			}
		}
	}
	for i := range spec.Filesystems {
		if espIDs[spec.Filesystems[i].DeviceID] {
			return &spec.Filesystems[i], true
		}
	}
	return nil, false
}

// stageImageScratch decompresses the OS image's ESP payload into a
// scratch file under newRoot, hashing as it streams, then loop-mounts it
// as VFAT. The image's own Digest is only available once its Reader has
// been fully drained, so the streaming hash runs unchecked and is
// compared against Digest afterward rather than being handed to
// DecompressAndVerify up front.
func stageImageScratch(ec *context.EngineContext, newRoot string) (mountPoint string, err error) {
	reader, err := ec.Image.Reader()
	if err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "boot.stageImageScratch", "failed to open image reader", err)
	}
	defer reader.Close()

	result, err := esp.DecompressAndVerify(reader, newRoot, "", 0)
	if err != nil {
		return "", err
	}

	digest, err := ec.Image.Digest()
	if err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "boot.stageImageScratch", "failed to read image digest", err)
	}
	if digest != "" && digest != result.Digest {
		return "", enginerr.New(enginerr.Servicing, "boot.stageImageScratch",
			"esp image digest mismatch: got "+result.Digest+", want "+digest)
	}

	mountPoint = filepath.Join(newRoot, "var", "tmp", "esp-extract", "mnt")
	if err := esp.MountScratchVfat(result.ScratchFilePath, mountPoint); err != nil {
		return "", err
	}
	return mountPoint, nil
}

// syncFallback refreshes the firmware-default directory per the
// configured fallback mode. The "active" side/index feed Rollback mode;
// for a clean install there is no prior active install, so Rollback is a
// no-op regardless of the values passed.
func syncFallback(ec *context.EngineContext, espRoot string, targetIndex int, side esp.Side) error {
	mode := esp.Rollforward
	if ec.NewSpec.Uki.FallbackMode == config.FallbackRollback {
		mode = esp.Rollback
	}

	isCleanInstall := ec.ServicingType == config.CleanInstall
	activeIndex := targetIndex
	activeSide := side
	if !isCleanInstall {
		activeSide = currentSide(ec.AbActiveVolume)
	}

	return esp.SyncFallback(espRoot, mode, activeIndex, int(activeSide), targetIndex, int(side), isCleanInstall)
}

// currentSide maps the currently-active A/B volume to its Side, the
// inverse of AbSideFromStatus's "next side" framing.
func currentSide(v config.AbActiveVolume) esp.Side {
	if v == config.AbB {
		return esp.SideB
	}
	return esp.SideA
}
