// Package graph implements the storage graph: a typed DAG over block-device
// ids that replaces the "a partition may be a RAID member may be a LUKS
// backing may be an A/B side" inheritance tangle with a single walkable
// structure, per SPEC_FULL §9 ("Storage graph rather than inheritance").
// Grounded on the teacher's config.ImageTemplate tree-of-partitions shape
// (internal/config) generalized from a fixed partition/filesystem pair into
// an arbitrary-depth backing chain.
package graph

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// NodeKind tags the variant a graph node represents.
type NodeKind int

const (
	NodeDisk NodeKind = iota
	NodePartition
	NodeRaidArray
	NodeEncryptedVolume
	NodeVerityDevice
	NodeAbPair
)

func (k NodeKind) String() string {
	switch k {
	case NodeDisk:
		return "disk"
	case NodePartition:
		return "partition"
	case NodeRaidArray:
		return "raid_array"
	case NodeEncryptedVolume:
		return "encrypted_volume"
	case NodeVerityDevice:
		return "verity_device"
	case NodeAbPair:
		return "ab_pair"
	default:
		return "unknown"
	}
}

// Node is one block-device identity in the graph. Parents are the ids this
// node is "backed by" (edges point from a node to what it depends on).
type Node struct {
	ID      string
	Kind    NodeKind
	Parents []string
}

// Graph is an acyclic DAG over block-device ids, built once per servicing
// action from a HostConfiguration and held read-only by EngineContext.
type Graph struct {
	nodes map[string]*Node
	// order is the insertion order, used for deterministic iteration in
	// tests and error messages.
	order []string
}

// New builds a StorageGraph from cfg and validates it: acyclic; each
// non-disk node has at least one parent edge and every parent is a known
// node; at most one filesystem is mounted at "/", and its device id is a
// known node. A configuration with no "/" filesystem is accepted.
func New(cfg *config.HostConfiguration) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node)}

	for _, d := range cfg.Disks {
		g.addNode(d.ID, NodeDisk, nil)
		for _, p := range d.Partitions {
			g.addNode(p.ID, NodePartition, []string{d.ID})
		}
		for _, ap := range d.AdoptedPartitions {
			g.addNode(ap.ID, NodePartition, []string{d.ID})
		}
	}

	for _, r := range cfg.RaidArrays {
		g.addNode(r.ID, NodeRaidArray, append([]string(nil), r.Members...))
	}

	if cfg.Encryption != nil {
		for _, v := range cfg.Encryption.Volumes {
			g.addNode(v.ID, NodeEncryptedVolume, []string{v.BackingID})
		}
	}

	for _, v := range cfg.Verity {
		g.addNode(v.ID, NodeVerityDevice, []string{v.DataID, v.HashID})
	}

	if cfg.AbUpdate != nil {
		g.addNode(cfg.AbUpdate.ID, NodeAbPair, []string{cfg.AbUpdate.VolumeAID, cfg.AbUpdate.VolumeBID})
	}

	if err := g.validate(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) addNode(id string, kind NodeKind, parents []string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = &Node{ID: id, Kind: kind, Parents: parents}
	g.order = append(g.order, id)
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) validate(cfg *config.HostConfiguration) error {
	for _, id := range g.order {
		if err := g.checkAcyclic(id, map[string]bool{}); err != nil {
			return err
		}
	}

	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind != NodeDisk && len(n.Parents) == 0 {
			return enginerr.New(enginerr.Internal, "graph.New",
				fmt.Sprintf("node %q has no parent in the storage graph", id))
		}
		for _, p := range n.Parents {
			if _, ok := g.nodes[p]; !ok {
				return enginerr.New(enginerr.Internal, "graph.New",
					fmt.Sprintf("node %q references unknown parent %q", id, p))
			}
		}
	}

	rootLeaves := 0
	for _, fs := range cfg.Filesystems {
		if fs.Mount != nil && fs.Mount.Path == "/" {
			if _, ok := g.nodes[fs.DeviceID]; !ok {
				return enginerr.New(enginerr.Internal, "graph.New",
					fmt.Sprintf("root filesystem references unknown device id %q", fs.DeviceID))
			}
			rootLeaves++
		}
	}
	if rootLeaves > 1 {
		return enginerr.New(enginerr.Internal, "graph.New", "root filesystem resolves to more than one leaf")
	}

	return nil
}

func (g *Graph) checkAcyclic(id string, visiting map[string]bool) error {
	if visiting[id] {
		return enginerr.New(enginerr.Internal, "graph.New", fmt.Sprintf("storage graph contains a cycle at %q", id))
	}
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	visiting[id] = true
	for _, p := range n.Parents {
		if err := g.checkAcyclic(p, visiting); err != nil {
			return err
		}
	}
	delete(visiting, id)
	return nil
}

// Ancestors returns every id reachable by walking parent edges from id,
// including id itself, in breadth-first order.
func (g *Graph) Ancestors(id string) []string {
	seen := map[string]bool{}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		if n, ok := g.nodes[cur]; ok {
			queue = append(queue, n.Parents...)
		}
	}
	return out
}
