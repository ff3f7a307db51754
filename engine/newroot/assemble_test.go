package newroot

import (
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

func TestAssembleFilesystems_MountsParentsBeforeChildren(t *testing.T) {
	dir := t.TempDir()
	m, err := Prepare(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Commit()

	var mountOrder []string
	withMockShell(t, []shell.MockCommand{
		{Pattern: `mount .*`, Output: "", Error: nil},
	})

	cfg := &config.HostConfiguration{
		Filesystems: []config.Filesystem{
			{DeviceID: "esp", FsType: "vfat", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/boot/efi"}},
			{DeviceID: "root", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/"}},
			{DeviceID: "boot", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/boot"}},
		},
	}
	resolve := func(id string) (string, error) { return "/dev/" + id, nil }

	if err := m.AssembleFilesystems(cfg, resolve, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, entry := range m.mounts {
		mountOrder = append(mountOrder, entry.target)
	}
	want := []string{dir + "/", dir + "/boot", dir + "/boot/efi"}
	if len(mountOrder) != len(want) {
		t.Fatalf("expected %d mounts, got %v", len(want), mountOrder)
	}
	for i := range want {
		if mountOrder[i] != want[i] {
			t.Fatalf("expected mount order %v, got %v", want, mountOrder)
		}
	}
}

func TestAssembleFilesystems_NtfsUsesBindMount(t *testing.T) {
	dir := t.TempDir()
	m, err := Prepare(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Commit()

	withMockShell(t, []shell.MockCommand{
		{Pattern: `mount --bind .*`, Output: "", Error: nil},
	})

	cfg := &config.HostConfiguration{
		Filesystems: []config.Filesystem{
			{DeviceID: "data", FsType: "ntfs", Source: config.SourceAdopted, Mount: &config.MountPoint{Path: "/data"}},
		},
	}
	resolve := func(id string) (string, error) { return "/dev/sdc1", nil }
	live := []LiveMount{{DevicePath: "/dev/sdc1", MountPoint: "/media/data", FsType: "ntfs"}}

	if err := m.AssembleFilesystems(cfg, resolve, live); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.mounts) != 1 || !m.mounts[0].bind {
		t.Fatalf("expected a single bind mount, got %v", m.mounts)
	}
}
