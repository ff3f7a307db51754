package newroot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moby/sys/mountinfo"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// PathResolver resolves a filesystem's flattened device id to the absolute
// block-device path the mount syscall should target.
type PathResolver func(deviceID string) (string, error)

// LiveMount describes an already-mounted filesystem elsewhere on the host,
// used to detect the NTFS special case (spec §4.2 step 3).
type LiveMount struct {
	DevicePath string
	MountPoint string
	FsType     string
}

// AssembleFilesystems mounts every declared filesystem with a mount point,
// in ascending mount-path order so parents mount before children, per spec
// §4.2 step 2. liveMounts is consulted for the NTFS special case.
func (n *NewrootMount) AssembleFilesystems(cfg *config.HostConfiguration, resolve PathResolver, liveMounts []LiveMount) error {
	ordered := orderedMountableFilesystems(cfg)

	for _, fs := range ordered {
		devicePath, err := resolve(fs.DeviceID)
		if err != nil {
			return err
		}

		if ntfsMount, ok := findNtfsLiveMount(liveMounts, devicePath); ok {
			if err := n.BindMount(ntfsMount.MountPoint, fs.Mount.Path); err != nil {
				return err
			}
			continue
		}

		switch fs.Source {
		case config.SourceTmpfs:
			if err := n.Mount("tmpfs", fs.Mount.Path, "tmpfs", fs.Mount.Options); err != nil {
				return err
			}
		default:
			if err := n.Mount(devicePath, fs.Mount.Path, fs.FsType, fs.Mount.Options); err != nil {
				return err
			}
		}
	}

	return nil
}

func orderedMountableFilesystems(cfg *config.HostConfiguration) []config.Filesystem {
	var out []config.Filesystem
	for _, fs := range cfg.Filesystems {
		if fs.Mount != nil {
			out = append(out, fs)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return mountDepthKey(out[i].Mount.Path) < mountDepthKey(out[j].Mount.Path)
	})
	return out
}

// mountDepthKey sorts "/" before "/boot" before "/boot/efi": lexicographic
// on the path with a trailing separator ensures a parent always sorts
// before any of its children.
func mountDepthKey(path string) string {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// DiscoverLiveMounts reads the kernel's current mount table and returns
// every mounted filesystem as a LiveMount, for AssembleFilesystems' NTFS
// special case (spec §4.2 step 3) to match a declared filesystem's
// resolved device path against. Grounded on the same mountinfo reader
// engine/rollback uses to find the live root device.
func DiscoverLiveMounts() ([]LiveMount, error) {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "newroot.DiscoverLiveMounts", "failed to read mount info", err)
	}

	out := make([]LiveMount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, LiveMount{
			DevicePath: m.Source,
			MountPoint: m.Mountpoint,
			FsType:     m.FSType,
		})
	}
	return out, nil
}

func findNtfsLiveMount(liveMounts []LiveMount, devicePath string) (LiveMount, bool) {
	for _, m := range liveMounts {
		if m.DevicePath == devicePath && strings.EqualFold(m.FsType, "ntfs") {
			return m, true
		}
	}
	return LiveMount{}, false
}

// RefuseIfReadOnlyAncestor returns an error if target lies beneath a path
// this NewrootMount has already mounted read-only, per spec §4.2 step 2
// ("refuse to create it inside a read-only ancestor"). It does not look at
// the filesystem; ensureTargetDir calls it only for a target that does not
// exist yet.
func RefuseIfReadOnlyAncestor(target string, readOnlyMounts map[string]bool) error {
	for ro := range readOnlyMounts {
		if strings.HasPrefix(target, ro+"/") {
			return enginerr.New(enginerr.Servicing, "newroot.AssembleFilesystems",
				fmt.Sprintf("cannot create mount target %q inside read-only ancestor %q", target, ro))
		}
	}
	return nil
}
