// Package storage implements the storage layout engine: partition
// adoption/creation, RAID assembly, LUKS encryption, dm-verity activation,
// swap formatting, and fstab/crypttab/mdadm.conf rendering, per SPEC_FULL
// §4.1. Grounded on the teacher's go-diskfs usage in
// internal/image/imageinspect/imageinspect.go (disk.GetPartitionTable,
// gpt.Table/mbr.Table walking) for partition-table inspection, generalized
// from read-only inspection into read-write provisioning.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/diskfs/go-diskfs/partition/gpt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// SafetyCheck performs the non-destructive pass spec §4.1 requires before
// any partitioning or formatting action: distinct canonical device nodes
// (symlinks resolved where the path exists), adoption requires a
// pre-existing GPT, every RAID member is a partition declared or adopted in
// this configuration, and no two declared partition ids collide. RAID
// members are not compared by the disk they lie on.
func SafetyCheck(cfg *config.HostConfiguration, live LiveDiskReader) error {
	seenDevicePaths := map[string]string{}
	seenPartitionIDs := map[string]bool{}

	for _, d := range cfg.Disks {
		canonical := d.DevicePath
		if resolved, err := filepath.EvalSymlinks(d.DevicePath); err == nil {
			canonical = resolved
		}
		if owner, ok := seenDevicePaths[canonical]; ok {
			return enginerr.New(enginerr.InvalidInput, "storage.SafetyCheck",
				fmt.Sprintf("disks %q and %q both resolve to device path %q", owner, d.ID, canonical))
		}
		seenDevicePaths[canonical] = d.ID

		for _, p := range d.Partitions {
			if seenPartitionIDs[p.ID] {
				return enginerr.New(enginerr.InvalidInput, "storage.SafetyCheck",
					fmt.Sprintf("duplicate partition id %q", p.ID))
			}
			seenPartitionIDs[p.ID] = true
		}

		if len(d.AdoptedPartitions) > 0 {
			hasTable, err := live.HasPartitionTable(d.DevicePath)
			if err != nil {
				return enginerr.Wrap(enginerr.Initialization, "storage.SafetyCheck",
					fmt.Sprintf("failed to inspect disk %q for adoption", d.DevicePath), err)
			}
			if !hasTable {
				return enginerr.New(enginerr.InvalidInput, "storage.SafetyCheck",
					fmt.Sprintf("disk %q has adopted partitions but no GPT present", d.ID))
			}
		}
	}

	for _, r := range cfg.RaidArrays {
		if err := checkSameDiskFamily(cfg, r); err != nil {
			return err
		}
	}

	return nil
}

// checkSameDiskFamily verifies every member of a RAID array is a partition
// declared on a disk in this configuration (not, e.g., a bare disk id mixed
// with a partition id from another disk's family in a way the assembler
// cannot reconcile).
func checkSameDiskFamily(cfg *config.HostConfiguration, r config.RaidArray) error {
	for _, memberID := range r.Members {
		found := false
		for _, d := range cfg.Disks {
			for _, p := range d.Partitions {
				if p.ID == memberID {
					found = true
				}
			}
			for _, ap := range d.AdoptedPartitions {
				if ap.ID == memberID {
					found = true
				}
			}
		}
		if !found {
			return enginerr.New(enginerr.InvalidInput, "storage.SafetyCheck",
				fmt.Sprintf("raid array %q references unknown member %q", r.ID, memberID))
		}
	}
	return nil
}

// LiveDiskReader is the narrow, mockable view onto live disk state the
// safety check and adoption logic need. The default implementation wraps
// github.com/diskfs/go-diskfs.
type LiveDiskReader interface {
	HasPartitionTable(devicePath string) (bool, error)
	ListPartitions(devicePath string) ([]LivePartition, error)
}

// LivePartition describes one partition already present on a disk.
type LivePartition struct {
	Label string
	UUID  string
	// NodePath is the kernel device node, e.g. /dev/sdb1.
	NodePath string
	// Start and End are the partition's absolute LBA sector bounds in its
	// existing GPT entry, carried through adoption so a matched partition
	// can be rewritten at its exact prior location instead of being
	// re-laid-out by size.
	Start, End uint64
	// Type is the partition's existing GPT type GUID.
	Type gpt.Type
}
