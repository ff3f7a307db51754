package storage

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

// PathLookup resolves a device id to the absolute block-device or source
// spec fstab should record.
type PathLookup func(deviceID string) (string, error)

// RenderFstab produces /etc/fstab content per spec §4.1/§6: one line per
// declared filesystem with a mount point; fs type (or "auto"); rendered
// options (empty serializes as "defaults"); disabled (commented) entries
// for filesystems the verity generator mounts instead; a read-only /etc
// overlay entry when the root filesystem is on verity; one swap entry per
// declared swap device.
func RenderFstab(cfg *config.HostConfiguration, pathFor PathLookup, verityBacked map[string]bool) (string, error) {
	var b strings.Builder
	rootOnVerity := false

	for _, fs := range cfg.Filesystems {
		if fs.Mount == nil {
			continue
		}
		spec, err := pathFor(fs.DeviceID)
		if err != nil {
			return "", err
		}
		fsType := fs.FsType
		if fsType == "" {
			fsType = "auto"
		}
		options := fs.Mount.Options
		if options == "" {
			options = "defaults"
		}
		passno := passNumber(fs.Mount.Path, fsType)
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t0\t%d", spec, fs.Mount.Path, fsType, options, passno)

		if verityBacked[fs.DeviceID] {
			if fs.Mount.Path == "/" {
				rootOnVerity = true
			}
			fmt.Fprintf(&b, "# mounted by the systemd-veritysetup generator\n# %s\n", line)
			continue
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	if rootOnVerity {
		b.WriteString("overlay\t/etc\toverlay\tlowerdir=/etc,upperdir=/var/lib/hostsvc/etc-overlay/upper,workdir=/var/lib/hostsvc/etc-overlay/work\t0\t0\n")
	}

	for _, sw := range cfg.Swap {
		spec, err := pathFor(sw.DeviceID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s\tnone\tswap\tsw\t0\t0\n", spec)
	}

	return b.String(), nil
}

func passNumber(mountPath, fsType string) int {
	if isNodevFsType(fsType) {
		return 0
	}
	if mountPath == "/" {
		return 1
	}
	return 2
}

func isNodevFsType(fsType string) bool {
	switch fsType {
	case "tmpfs", "overlay", "proc", "sysfs", "devtmpfs", "devpts":
		return true
	default:
		return false
	}
}
