package storage

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/google/uuid"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// partitionWaitTimeout bounds how long CreatePartitions waits for the
// kernel to publish a by-partuuid symlink after a table write.
const partitionWaitTimeout = 30 * time.Second

// PartitionPlan is one ordered entry of the description list spec §4.1
// names: "(id, type, size∈{fixed bytes|Grow}, optional label, optional
// UUID)".
type PartitionPlan struct {
	ID    string
	Type  string
	Size  config.PartitionSize
	Label string
	UUID  string

	// Locked marks a plan entry as a previously-adopted partition being
	// forwarded at its existing geometry rather than laid out by Size,
	// per spec §4.1: "Matched partitions are preserved, their size
	// locked, and forwarded to the partition tool so that subsequent
	// creation passes leave them untouched."
	Locked      bool
	LockedStart uint64
	LockedEnd   uint64
	LockedType  gpt.Type
}

// PlanFromDisk builds the ordered creation plan for d's declared (not
// adopted) partitions, assigning a random UUID to any partition that did
// not pin one explicitly.
func PlanFromDisk(d config.Disk) []PartitionPlan {
	plans := make([]PartitionPlan, 0, len(d.Partitions))
	for _, p := range d.Partitions {
		id := p.UUID
		if id == "" {
			id = uuid.NewString()
		}
		plans = append(plans, PartitionPlan{
			ID:    p.ID,
			Type:  p.Type,
			Size:  p.Size,
			Label: p.Label,
			UUID:  id,
		})
	}
	return plans
}

// MergeAdoptedPartitions prepends a locked plan entry for every matched
// adopted partition, ordered by its existing on-disk position, ahead of
// plans. Without this, CreatePartitions would rewrite the GPT from plans
// alone and silently drop every adopted partition from the new table.
func MergeAdoptedPartitions(plans []PartitionPlan, matched map[string]AdoptedPartitionInfo) []PartitionPlan {
	if len(matched) == 0 {
		return plans
	}

	locked := make([]PartitionPlan, 0, len(matched))
	for id, info := range matched {
		locked = append(locked, PartitionPlan{
			ID:          id,
			Label:       info.Label,
			UUID:        info.GUID,
			Locked:      true,
			LockedStart: info.Start,
			LockedEnd:   info.End,
			LockedType:  info.Type,
		})
	}
	sort.Slice(locked, func(i, j int) bool { return locked[i].LockedStart < locked[j].LockedStart })

	return append(locked, plans...)
}

// CreatePartitions writes a GPT containing plans onto devicePath, in the
// declared order, then waits for each partition's by-partuuid symlink to
// appear and returns id -> that symlink path. If adopted partitions are
// also present on the disk, the kernel partition table is re-read via
// `partx --update` afterward, per spec §4.1.
func CreatePartitions(devicePath string, plans []PartitionPlan, hasAdopted bool) (map[string]string, error) {
	disk, err := diskfs.Open(devicePath, diskfs.WithOpenMode(diskfs.ReadWrite))
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "storage.CreatePartitions",
			fmt.Sprintf("failed to open %q for partitioning", devicePath), err)
	}
	defer disk.Close()

	table := &gpt.Table{
		LogicalSectorSize:  512,
		PhysicalSectorSize: 512,
	}
	for _, p := range plans {
		if p.Locked {
			table.Partitions = append(table.Partitions, &gpt.Partition{
				Start: p.LockedStart,
				End:   p.LockedEnd,
				Name:  p.Label,
				Type:  p.LockedType,
				GUID:  p.UUID,
			})
			continue
		}
		sizeBytes := p.Size.Bytes
		if p.Size.Grow {
			sizeBytes = 0 // go-diskfs treats a zero-length request as "fill remaining space" when last in table
		}
		table.Partitions = append(table.Partitions, &gpt.Partition{
			Name: p.Label,
			Type: gptPartitionType(p.Type),
			GUID: p.UUID,
			Size: sizeBytes,
		})
	}

	if err := disk.Partition(table); err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "storage.CreatePartitions",
			fmt.Sprintf("failed to write GPT onto %q", devicePath), err)
	}

	if hasAdopted {
		if _, err := shell.ExecCmd(fmt.Sprintf("partx --update %s", devicePath), true, "", nil); err != nil {
			return nil, enginerr.Wrap(enginerr.Servicing, "storage.CreatePartitions", "failed to re-read kernel partition table", err)
		}
	}

	paths := make(map[string]string, len(plans))
	for _, p := range plans {
		if p.Locked {
			// Already resolved to its existing node path by AdoptPartitions;
			// the caller has recorded it and needs no re-derivation here.
			continue
		}
		path, err := waitForByPartUUID(p.UUID, partitionWaitTimeout)
		if err != nil {
			return nil, err
		}
		paths[p.ID] = path
	}

	logger.Logger().Infof("created %d partitions on %s", len(plans), devicePath)
	return paths, nil
}

// waitForByPartUUID polls for /dev/disk/by-partuuid/<uuid> to appear,
// matching spec §4.1's "wait (by-UUID symlink) until each new partition
// node appears".
func waitForByPartUUID(partUUID string, timeout time.Duration) (string, error) {
	path := fmt.Sprintf("/dev/disk/by-partuuid/%s", partUUID)
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Lstat(path); err == nil {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", enginerr.New(enginerr.Servicing, "storage.waitForByPartUUID",
				fmt.Sprintf("timed out waiting for %s to appear", path))
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// gptPartitionType maps the configuration's logical partition type to a GPT
// type GUID. "esp" and "root" are the two types the engine itself assigns
// meaning to; anything else is passed through as a Linux-filesystem-data
// partition and left to the filesystem layer to interpret.
func gptPartitionType(kind string) gpt.Type {
	switch kind {
	case "esp":
		return gpt.EFISystemPartition
	case "root":
		return gpt.LinuxFilesystem
	default:
		return gpt.LinuxFilesystem
	}
}
