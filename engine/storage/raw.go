package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// WriteRawGPT implements the "raw mode" alternative path of spec §4.1: when
// the image carries a full GPT, write it directly onto the target disk and
// cross-check that every live partition UUID matches some declared
// partition that pins a uuid. Paths and the disk UUID are only committed
// once fsync + partition-table re-read both succeed.
func WriteRawGPT(devicePath string, rawGPTImagePath string, d config.Disk) (diskUUID string, partitionPaths map[string]string, err error) {
	if err := copyRawImageOntoDisk(rawGPTImagePath, devicePath); err != nil {
		return "", nil, err
	}

	if _, err := shell.ExecCmd(fmt.Sprintf("partx --update %s", devicePath), true, "", nil); err != nil {
		return "", nil, enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", "failed to re-read kernel partition table after raw write", err)
	}

	disk, err := diskfs.Open(devicePath)
	if err != nil {
		return "", nil, enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", "failed to reopen disk after raw write", err)
	}
	defer disk.Close()

	pt, err := disk.GetPartitionTable()
	if err != nil {
		return "", nil, enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", "failed to read back partition table", err)
	}
	gptTable, ok := pt.(*gpt.Table)
	if !ok {
		return "", nil, enginerr.New(enginerr.Servicing, "storage.WriteRawGPT", "raw image did not produce a GPT")
	}

	declaredByUUID := make(map[string]string, len(d.Partitions))
	for _, p := range d.Partitions {
		if p.UUID == "" {
			return "", nil, enginerr.New(enginerr.InvalidInput, "storage.WriteRawGPT",
				fmt.Sprintf("partition %q must pin a uuid for raw mode cross-check", p.ID))
		}
		declaredByUUID[strings.ToUpper(p.UUID)] = p.ID
	}

	paths := make(map[string]string, len(d.Partitions))
	for _, lp := range gptTable.Partitions {
		if lp.Start == 0 && lp.End == 0 {
			continue
		}
		liveUUID := strings.ToUpper(lp.GUID)
		id, ok := declaredByUUID[liveUUID]
		if !ok {
			return "", nil, enginerr.New(enginerr.Servicing, "storage.WriteRawGPT",
				fmt.Sprintf("live partition uuid %q does not match any declared partition", liveUUID))
		}
		path, err := waitForByPartUUID(liveUUID, partitionWaitTimeout)
		if err != nil {
			return "", nil, err
		}
		paths[id] = path
	}

	return strings.ToUpper(gptTable.GUID), paths, nil
}

func copyRawImageOntoDisk(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", fmt.Sprintf("failed to open raw image %q", src), err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY, 0)
	if err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", fmt.Sprintf("failed to open target disk %q", dst), err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", "failed to copy raw image onto disk", err)
	}
	if err := out.Sync(); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.WriteRawGPT", "failed to fsync target disk", err)
	}
	return nil
}
