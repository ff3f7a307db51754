package storage

import (
	"strings"
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

func TestAdoptPartitions_MatchesByLabel(t *testing.T) {
	d := config.Disk{
		DevicePath:        "/dev/sdb",
		AdoptedPartitions: []config.AdoptedPartition{{ID: "data", Label: "DATA"}},
	}
	live := &fakeLiveDiskReader{partitions: map[string][]LivePartition{
		"/dev/sdb": {
			{Label: "DATA", NodePath: "/dev/sdb1"},
			{Label: "OTHER", NodePath: "/dev/sdb2"},
		},
	}}

	matched, unmatched, err := AdoptPartitions(d, live)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched["data"].Path != "/dev/sdb1" {
		t.Fatalf("expected data -> /dev/sdb1, got %v", matched)
	}
	if len(unmatched) != 1 || unmatched[0] != "/dev/sdb2" {
		t.Fatalf("expected /dev/sdb2 to be unmatched, got %v", unmatched)
	}
}

func TestAdoptPartitions_CarriesGeometryForMerge(t *testing.T) {
	d := config.Disk{
		DevicePath:        "/dev/sdb",
		AdoptedPartitions: []config.AdoptedPartition{{ID: "data", Label: "DATA"}},
	}
	live := &fakeLiveDiskReader{partitions: map[string][]LivePartition{
		"/dev/sdb": {
			{Label: "DATA", UUID: "abc-123", NodePath: "/dev/sdb1", Start: 2048, End: 206847},
		},
	}}

	matched, _, err := AdoptPartitions(d, live)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info := matched["data"]
	if info.Start != 2048 || info.End != 206847 {
		t.Fatalf("expected adopted geometry to be carried through, got %+v", info)
	}
	if info.GUID != "abc-123" {
		t.Fatalf("expected adopted GUID to be carried through, got %+v", info)
	}
}

func TestAdoptPartitions_AmbiguousLabelFails(t *testing.T) {
	d := config.Disk{
		DevicePath:        "/dev/sdb",
		AdoptedPartitions: []config.AdoptedPartition{{ID: "data", Label: "data"}},
	}
	live := &fakeLiveDiskReader{partitions: map[string][]LivePartition{
		"/dev/sdb": {
			{Label: "data", NodePath: "/dev/sdb1"},
			{Label: "data", NodePath: "/dev/sdb2"},
		},
	}}

	_, _, err := AdoptPartitions(d, live)
	if err == nil || !strings.Contains(err.Error(), "found 2") {
		t.Fatalf("expected ambiguous match error, got %v", err)
	}
}

func TestAdoptPartitions_NoMatchFails(t *testing.T) {
	d := config.Disk{
		DevicePath:        "/dev/sdb",
		AdoptedPartitions: []config.AdoptedPartition{{ID: "data", Label: "data"}},
	}
	live := &fakeLiveDiskReader{partitions: map[string][]LivePartition{
		"/dev/sdb": {{Label: "other", NodePath: "/dev/sdb1"}},
	}}

	_, _, err := AdoptPartitions(d, live)
	if err == nil || !strings.Contains(err.Error(), "found 0") {
		t.Fatalf("expected no-match error, got %v", err)
	}
}

func TestAdoptPartitions_EmptyDiskFails(t *testing.T) {
	d := config.Disk{
		DevicePath:        "/dev/sdb",
		AdoptedPartitions: []config.AdoptedPartition{{ID: "data", Label: "data"}},
	}
	live := &fakeLiveDiskReader{}

	_, _, err := AdoptPartitions(d, live)
	if err == nil {
		t.Fatal("expected error adopting from an empty disk")
	}
}

func TestAdoptPartitions_NoAdoptionsIsNoop(t *testing.T) {
	d := config.Disk{DevicePath: "/dev/sdb"}
	live := &fakeLiveDiskReader{}

	matched, unmatched, err := AdoptPartitions(d, live)
	if err != nil || matched != nil || unmatched != nil {
		t.Fatalf("expected no-op, got matched=%v unmatched=%v err=%v", matched, unmatched, err)
	}
}
