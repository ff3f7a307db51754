package storage

import "testing"

func TestMergeAdoptedPartitions_NoopWhenNothingMatched(t *testing.T) {
	plans := []PartitionPlan{{ID: "new", UUID: "u1"}}
	got := MergeAdoptedPartitions(plans, nil)
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected plans to pass through unchanged, got %v", got)
	}
}

func TestMergeAdoptedPartitions_PrependsLockedGeometryInDiskOrder(t *testing.T) {
	plans := []PartitionPlan{{ID: "new", UUID: "u-new"}}
	matched := map[string]AdoptedPartitionInfo{
		"data": {Path: "/dev/sdb2", Start: 206848, End: 999999, GUID: "u-data", Label: "DATA"},
		"boot": {Path: "/dev/sdb1", Start: 2048, End: 206847, GUID: "u-boot", Label: "BOOT"},
	}

	got := MergeAdoptedPartitions(plans, matched)
	if len(got) != 3 {
		t.Fatalf("expected 3 plan entries, got %d: %v", len(got), got)
	}
	if !got[0].Locked || got[0].ID != "boot" {
		t.Fatalf("expected boot (lower Start) first, got %+v", got[0])
	}
	if !got[1].Locked || got[1].ID != "data" {
		t.Fatalf("expected data second, got %+v", got[1])
	}
	if got[2].Locked || got[2].ID != "new" {
		t.Fatalf("expected the newly-declared partition last and unlocked, got %+v", got[2])
	}
	if got[0].LockedStart != 2048 || got[0].LockedEnd != 206847 {
		t.Fatalf("expected boot's geometry to be preserved, got %+v", got[0])
	}
}
