package storage

import (
	"fmt"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
)

// GoDiskfsReader is the default LiveDiskReader, backed by go-diskfs the
// same way the teacher's DiskfsInspector opens and walks a partition table
// (imageinspect.go: diskfs.Open, pt.(*gpt.Table)), generalized from
// read-only summary to a label/uuid lookup table.
type GoDiskfsReader struct{}

func (GoDiskfsReader) HasPartitionTable(devicePath string) (bool, error) {
	disk, err := diskfs.Open(devicePath)
	if err != nil {
		return false, fmt.Errorf("open disk %s: %w", devicePath, err)
	}
	defer disk.Close()

	_, err = disk.GetPartitionTable()
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (GoDiskfsReader) ListPartitions(devicePath string) ([]LivePartition, error) {
	disk, err := diskfs.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("open disk %s: %w", devicePath, err)
	}
	defer disk.Close()

	pt, err := disk.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("get partition table for %s: %w", devicePath, err)
	}

	gptTable, ok := pt.(*gpt.Table)
	if !ok {
		return nil, fmt.Errorf("disk %s does not carry a GPT", devicePath)
	}

	var out []LivePartition
	for i, p := range gptTable.Partitions {
		if p.Start == 0 && p.End == 0 {
			continue
		}
		out = append(out, LivePartition{
			Label:    p.Name,
			UUID:     strings.ToUpper(p.GUID),
			NodePath: fmt.Sprintf("%s%d", partitionPrefix(devicePath), i+1),
			Start:    p.Start,
			End:      p.End,
			Type:     p.Type,
		})
	}
	return out, nil
}

// partitionPrefix appends "p" before the partition number for nvme/mmcblk-
// style device names (nvme0n1 -> nvme0n1p1) and nothing for sdX-style names
// (sdb -> sdb1).
func partitionPrefix(devicePath string) string {
	if strings.HasSuffix(devicePath, "]") {
		return devicePath
	}
	last := devicePath[len(devicePath)-1]
	if last >= '0' && last <= '9' {
		return devicePath + "p"
	}
	return devicePath
}
