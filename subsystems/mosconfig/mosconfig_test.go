package mosconfig

import (
	"testing"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
)

func TestSubsystem_NameMatchesRegistryKey(t *testing.T) {
	s := New()
	if s.Name() != "mos-config" {
		t.Fatalf("Name() = %q, want mos-config", s.Name())
	}
}

func TestSubsystem_AllStepsAreNoops(t *testing.T) {
	s := New()
	spec := &config.HostConfiguration{
		Disks: []config.Disk{
			{ID: "os", DevicePath: "/dev/sdb", Partitions: []config.Partition{{ID: "root", Type: "root"}}},
		},
		Filesystems: []config.Filesystem{
			{DeviceID: "root", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/"}},
		},
	}
	ec, err := context.Build(config.NewHostStatus(), spec, config.NormalUpdate, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got, err := s.Propose(ec); err != nil || got != config.NoActive {
		t.Fatalf("Propose = %v, %v; want NoActive, nil", got, err)
	}
	if err := s.Validate(ec); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if err := s.Prepare(ec); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := s.Provision(ec, ""); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if err := s.Configure(ec, ""); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
}
