package storage

import (
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

type fakeLiveDiskReader struct {
	tables     map[string]bool
	partitions map[string][]LivePartition
}

func (f *fakeLiveDiskReader) HasPartitionTable(devicePath string) (bool, error) {
	return f.tables[devicePath], nil
}

func (f *fakeLiveDiskReader) ListPartitions(devicePath string) ([]LivePartition, error) {
	return f.partitions[devicePath], nil
}

func minimalSafetyConfig() *config.HostConfiguration {
	return &config.HostConfiguration{
		Disks: []config.Disk{
			{ID: "os", DevicePath: "/dev/sdb", Partitions: []config.Partition{{ID: "root"}}},
		},
	}
}

func TestSafetyCheck_OK(t *testing.T) {
	live := &fakeLiveDiskReader{}
	if err := SafetyCheck(minimalSafetyConfig(), live); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSafetyCheck_DuplicateDevicePath(t *testing.T) {
	cfg := minimalSafetyConfig()
	cfg.Disks = append(cfg.Disks, config.Disk{ID: "os2", DevicePath: "/dev/sdb"})

	live := &fakeLiveDiskReader{}
	if err := SafetyCheck(cfg, live); err == nil {
		t.Fatal("expected error for duplicate device path")
	}
}

func TestSafetyCheck_AdoptionRequiresGPT(t *testing.T) {
	cfg := minimalSafetyConfig()
	cfg.Disks[0].AdoptedPartitions = []config.AdoptedPartition{{ID: "data", Label: "data"}}

	live := &fakeLiveDiskReader{tables: map[string]bool{"/dev/sdb": false}}
	err := SafetyCheck(cfg, live)
	if enginerr.KindOf(err) != enginerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", enginerr.KindOf(err))
	}
}

func TestSafetyCheck_RaidMemberMustBeKnown(t *testing.T) {
	cfg := minimalSafetyConfig()
	cfg.RaidArrays = []config.RaidArray{{ID: "md0", Level: config.Raid1, Members: []string{"root", "ghost"}}}

	live := &fakeLiveDiskReader{}
	if err := SafetyCheck(cfg, live); err == nil {
		t.Fatal("expected error for unknown raid member")
	}
}
