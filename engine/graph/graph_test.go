package graph

import (
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

func sampleConfig() *config.HostConfiguration {
	return &config.HostConfiguration{
		Disks: []config.Disk{
			{
				ID:         "os",
				DevicePath: "/dev/sdb",
				Partitions: []config.Partition{
					{ID: "esp", Type: "esp"},
					{ID: "root-a", Type: "root"},
					{ID: "root-b", Type: "root"},
				},
			},
		},
		AbUpdate: &config.AbUpdateConfig{ID: "root", VolumeAID: "root-a", VolumeBID: "root-b"},
		Filesystems: []config.Filesystem{
			{DeviceID: "root", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/"}},
			{DeviceID: "esp", FsType: "vfat", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/boot/efi"}},
		},
	}
}

func TestNew_BuildsNodesForEveryDeclaredDevice(t *testing.T) {
	g, err := New(sampleConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"os", "esp", "root-a", "root-b", "root"} {
		if _, ok := g.Node(id); !ok {
			t.Fatalf("expected node %q to exist", id)
		}
	}
}

func TestNew_RejectsOrphanNode(t *testing.T) {
	cfg := sampleConfig()
	cfg.Verity = []config.VerityDevice{{ID: "verity-root", Name: "root", DataID: "missing-data", HashID: "root-a"}}

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown parent reference")
	}
}

func TestNew_RejectsCycle(t *testing.T) {
	g := &Graph{nodes: map[string]*Node{}}
	g.addNode("a", NodeRaidArray, []string{"b"})
	g.addNode("b", NodeRaidArray, []string{"a"})

	if err := g.checkAcyclic("a", map[string]bool{}); err == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestResolver_FlattenAbPair(t *testing.T) {
	cfg := sampleConfig()
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rA := NewResolver(g, cfg, false)
	got, err := rA.FlattenFully("root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "root-a" {
		t.Fatalf("expected root-a, got %s", got)
	}

	rB := NewResolver(g, cfg, true)
	got, err = rB.FlattenFully("root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "root-b" {
		t.Fatalf("expected root-b, got %s", got)
	}
}

func TestResolver_FlattenUnknownID(t *testing.T) {
	cfg := sampleConfig()
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := NewResolver(g, cfg, false)
	if _, err := r.Flatten("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestAncestors_WalksParentChain(t *testing.T) {
	cfg := sampleConfig()
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	anc := g.Ancestors("root-a")
	found := map[string]bool{}
	for _, id := range anc {
		found[id] = true
	}
	if !found["root-a"] || !found["os"] {
		t.Fatalf("expected ancestors to include root-a and os, got %v", anc)
	}
}
