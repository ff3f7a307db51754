package storage

import (
	"fmt"

	"github.com/diskfs/go-diskfs/partition/gpt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// AdoptedPartitionInfo carries both the resolved device node and the
// existing GPT geometry of a matched adopted partition, so the caller can
// both record its path and forward its locked geometry into the next
// CreatePartitions call instead of letting it be discarded.
type AdoptedPartitionInfo struct {
	Path  string
	Start uint64
	End   uint64
	Type  gpt.Type
	GUID  string
	Label string
}

// AdoptPartitions matches each declared adoption against the live
// partitions on d.DevicePath, per spec §4.1: exactly one of label xor uuid
// must match exactly one live partition. Partitions not matched by any
// adoption are deleted (represented here by returning their node paths for
// the caller to delete, since actual deletion is the partition tool's
// concern). Returns id -> matched partition info for every matched
// adoption.
func AdoptPartitions(d config.Disk, live LiveDiskReader) (map[string]AdoptedPartitionInfo, []string, error) {
	if len(d.AdoptedPartitions) == 0 {
		return nil, nil, nil
	}

	livePartitions, err := live.ListPartitions(d.DevicePath)
	if err != nil {
		return nil, nil, enginerr.Wrap(enginerr.Servicing, "storage.AdoptPartitions",
			fmt.Sprintf("failed to enumerate live partitions on %q", d.DevicePath), err)
	}
	if len(livePartitions) == 0 {
		return nil, nil, enginerr.New(enginerr.InvalidInput, "storage.AdoptPartitions",
			fmt.Sprintf("disk %q is empty, adoption is not possible", d.DevicePath))
	}

	matched := make(map[string]AdoptedPartitionInfo, len(d.AdoptedPartitions))
	claimedNodes := make(map[string]bool, len(d.AdoptedPartitions))

	for _, ap := range d.AdoptedPartitions {
		var candidates []LivePartition
		for _, lp := range livePartitions {
			if matchesAdoption(ap, lp) {
				candidates = append(candidates, lp)
			}
		}
		switch {
		case len(candidates) == 0:
			predicate := adoptionPredicateDescription(ap)
			return nil, nil, enginerr.New(enginerr.InvalidInput, "storage.AdoptPartitions",
				fmt.Sprintf("expected exactly one partition with %s, found 0", predicate))
		case len(candidates) > 1:
			predicate := adoptionPredicateDescription(ap)
			return nil, nil, enginerr.New(enginerr.InvalidInput, "storage.AdoptPartitions",
				fmt.Sprintf("expected exactly one partition with %s, found %d", predicate, len(candidates)))
		}
		matched[ap.ID] = AdoptedPartitionInfo{
			Path:  candidates[0].NodePath,
			Start: candidates[0].Start,
			End:   candidates[0].End,
			Type:  candidates[0].Type,
			GUID:  candidates[0].UUID,
			Label: candidates[0].Label,
		}
		claimedNodes[candidates[0].NodePath] = true
	}

	var unmatched []string
	for _, lp := range livePartitions {
		if !claimedNodes[lp.NodePath] {
			unmatched = append(unmatched, lp.NodePath)
		}
	}

	logger.Logger().Infof("disk %s: adopted %d partitions, %d unmatched for deletion", d.DevicePath, len(matched), len(unmatched))
	return matched, unmatched, nil
}

func matchesAdoption(ap config.AdoptedPartition, lp LivePartition) bool {
	if ap.Label != "" {
		return lp.Label == ap.Label
	}
	return lp.UUID == ap.UUID
}

func adoptionPredicateDescription(ap config.AdoptedPartition) string {
	if ap.Label != "" {
		return fmt.Sprintf("label '%s'", ap.Label)
	}
	return fmt.Sprintf("uuid '%s'", ap.UUID)
}
