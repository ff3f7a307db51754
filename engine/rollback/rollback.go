// Package rollback implements the post-reboot validation spec §4.4
// describes: compare the root device the kernel actually booted from
// against the device the just-finalized HostStatus expected, and revert
// HostStatus when they disagree. Grounded on the mount-info parsing
// shown in other_examples/ (cgresolver's /proc/self/mountinfo reader)
// and on the real ecosystem library that does the same job properly,
// github.com/moby/sys/mountinfo — vendored (transitively) by coreos-
// assembler's gangplank, confirming it is part of this corpus's reach.
package rollback

import (
	"path/filepath"

	"github.com/moby/sys/mountinfo"

	"github.com/open-edge-platform/host-servicer/engine/graph"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// liveRootDeviceFn is swapped out in tests so Validate can be exercised
// without a real mounted root to inspect.
var liveRootDeviceFn = LiveRootDevice

// LiveRootDevice returns the source device of the currently mounted "/",
// as reported by the kernel through /proc/self/mountinfo.
func LiveRootDevice() (string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.SingleEntryFilter("/"))
	if err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "rollback.LiveRootDevice", "failed to read mount info", err)
	}
	if len(mounts) == 0 {
		return "", enginerr.New(enginerr.Servicing, "rollback.LiveRootDevice", "no mount entry found for /")
	}
	return mounts[0].Source, nil
}

// ExpectedRootDevice resolves the root filesystem's declared device id
// through the storage graph (following the A/B pair to the side the last
// servicing targeted, i.e. B while HostStatus.AbActiveVolume is A and A
// otherwise, and a verity device to its backing data partition) down to
// the physical path recorded in HostStatus.
func ExpectedRootDevice(cfg *config.HostConfiguration, status *config.HostStatus) (string, error) {
	rootID, err := rootDeviceID(cfg)
	if err != nil {
		return "", err
	}

	g, err := graph.New(cfg)
	if err != nil {
		return "", err
	}
	resolver := graph.NewResolver(g, cfg, status.AbActiveVolume == config.AbA)

	resolvedID, err := resolver.FlattenFully(rootID)
	if err != nil {
		return "", err
	}

	if v := findVerityDevice(cfg, resolvedID); v != nil {
		dataResolved, err := resolver.FlattenFully(v.DataID)
		if err != nil {
			return "", err
		}
		resolvedID = dataResolved
	}

	path, ok := status.PartitionPaths[resolvedID]
	if !ok || path == "" {
		return "", enginerr.New(enginerr.Internal, "rollback.ExpectedRootDevice",
			"no partition path recorded for resolved root device id "+resolvedID)
	}
	return path, nil
}

func rootDeviceID(cfg *config.HostConfiguration) (string, error) {
	for _, fs := range cfg.Filesystems {
		if fs.Mount != nil && fs.Mount.Path == "/" {
			return fs.DeviceID, nil
		}
	}
	return "", enginerr.New(enginerr.Internal, "rollback.rootDeviceID", "configuration declares no root filesystem")
}

func findVerityDevice(cfg *config.HostConfiguration, id string) *config.VerityDevice {
	for i := range cfg.Verity {
		if cfg.Verity[i].ID == id {
			return &cfg.Verity[i]
		}
	}
	return nil
}

// Validate compares the live root device against the expected one and
// returns nil on a match. On mismatch it returns a Servicing error
// (kind Servicing::AbUpdateRebootCheck in spec terms) carrying both
// paths in its detail, per spec §8 scenario 6.
func Validate(cfg *config.HostConfiguration, status *config.HostStatus) error {
	expected, err := ExpectedRootDevice(cfg, status)
	if err != nil {
		return err
	}
	live, err := liveRootDeviceFn()
	if err != nil {
		return err
	}

	if canonicalize(expected) == canonicalize(live) {
		return nil
	}

	return enginerr.New(enginerr.Servicing, "rollback.AbUpdateRebootCheck",
		"live root device does not match the device expected after servicing: expected="+expected+" live="+live)
}

// DeriveLiveActiveVolume re-derives which A/B side the kernel actually
// booted into, by resolving the root device under each side's assumption
// and matching against the live "/" source device. Used by the pre-update
// A/B active-volume guard (spec §4.4): the guard's whole point is
// confirming this independently-derived answer still agrees with
// HostStatus, since a silent firmware rollback would otherwise go
// unnoticed until the next reboot.
func DeriveLiveActiveVolume(cfg *config.HostConfiguration, status *config.HostStatus) (config.AbActiveVolume, error) {
	live, err := liveRootDeviceFn()
	if err != nil {
		return config.AbNone, err
	}

	for _, side := range []config.AbActiveVolume{config.AbA, config.AbB} {
		probe := status.Clone()
		// ExpectedRootDevice resolves the side opposite AbActiveVolume, so
		// probe with the other side to get this side's own root device.
		if side == config.AbA {
			probe.AbActiveVolume = config.AbB
		} else {
			probe.AbActiveVolume = config.AbA
		}
		expected, err := ExpectedRootDevice(cfg, probe)
		if err != nil {
			continue
		}
		if canonicalize(expected) == canonicalize(live) {
			return side, nil
		}
	}

	return config.AbNone, enginerr.New(enginerr.Servicing, "rollback.DeriveLiveActiveVolume",
		"live root device "+live+" does not match either A/B side's expected root device")
}

func canonicalize(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}
