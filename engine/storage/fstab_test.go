package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

var errNoPath = errors.New("no path recorded")

func TestRenderFstab_TwoDataLines(t *testing.T) {
	cfg := &config.HostConfiguration{
		Filesystems: []config.Filesystem{
			{DeviceID: "root", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/"}},
			{DeviceID: "esp", FsType: "vfat", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/boot/efi", Options: "umask=0077"}},
		},
	}
	paths := map[string]string{"root": "/dev/disk/by-partuuid/u2", "esp": "/dev/disk/by-partuuid/u1"}
	lookup := func(id string) (string, error) { return paths[id], nil }

	out, err := RenderFstab(cfg, lookup, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 fstab lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "/dev/disk/by-partuuid/u2\t/\text4\tdefaults\t0\t1") {
		t.Fatalf("unexpected root line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "umask=0077\t0\t2") {
		t.Fatalf("unexpected esp line: %q", lines[1])
	}
}

func TestRenderFstab_VerityEntryIsCommentedOut(t *testing.T) {
	cfg := &config.HostConfiguration{
		Filesystems: []config.Filesystem{
			{DeviceID: "verity-root", FsType: "ext4", Source: config.SourceImage, Mount: &config.MountPoint{Path: "/"}},
		},
	}
	lookup := func(id string) (string, error) { return "/dev/mapper/root", nil }

	out, err := RenderFstab(cfg, lookup, map[string]bool{"verity-root": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "# mounted by the systemd-veritysetup generator\n#") {
		t.Fatalf("expected commented verity entry, got %q", out)
	}
	if !strings.Contains(out, "overlay\t/etc\toverlay") {
		t.Fatalf("expected /etc overlay entry when root is on verity, got %q", out)
	}
}

func TestRenderFstab_SwapEntry(t *testing.T) {
	cfg := &config.HostConfiguration{
		Swap: []config.SwapDevice{{DeviceID: "swap0"}},
	}
	lookup := func(id string) (string, error) { return "/dev/mapper/swap0", nil }

	out, err := RenderFstab(cfg, lookup, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "/dev/mapper/swap0\tnone\tswap\tsw\t0\t0") {
		t.Fatalf("expected swap entry, got %q", out)
	}
}

func TestRenderFstab_PropagatesLookupError(t *testing.T) {
	cfg := &config.HostConfiguration{
		Filesystems: []config.Filesystem{
			{DeviceID: "root", FsType: "ext4", Mount: &config.MountPoint{Path: "/"}},
		},
	}
	lookup := func(id string) (string, error) { return "", errNoPath }

	if _, err := RenderFstab(cfg, lookup, nil); err == nil {
		t.Fatal("expected lookup error to propagate")
	}
}
