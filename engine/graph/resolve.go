package graph

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// Resolver flattens a graph id to the block-device id the storage engine
// actually provisions, per the Newroot construction protocol (SPEC_FULL
// §4.2 step 1): raid-id → raid device; encryption-id → mapper device;
// verity-id → temporary dm-verity device; A/B-pair-id → the update side.
type Resolver struct {
	graph       *Graph
	cfg         *config.HostConfiguration
	updateSideB bool
}

// NewResolver builds a Resolver. updateSideB selects the B side whenever an
// id resolves through an A/B pair; set true when ab_active_volume is A (so
// the update targets B) and false when it is B or None.
func NewResolver(g *Graph, cfg *config.HostConfiguration, updateSideB bool) *Resolver {
	return &Resolver{graph: g, cfg: cfg, updateSideB: updateSideB}
}

// Flatten returns the id that should be used to look up an actual
// block-device path for id, resolving A/B-pair indirection exactly once.
// Disk, partition, raid, encryption and verity ids are returned unchanged:
// the storage engine records a path for each of them directly. Callers
// loop Flatten until it returns its input unchanged.
func (r *Resolver) Flatten(id string) (string, error) {
	n, ok := r.graph.Node(id)
	if !ok {
		return "", enginerr.New(enginerr.Internal, "graph.Flatten", fmt.Sprintf("unknown device id %q", id))
	}

	switch n.Kind {
	case NodeDisk, NodePartition:
		return id, nil
	case NodeRaidArray, NodeEncryptedVolume, NodeVerityDevice:
		return id, nil
	case NodeAbPair:
		if r.cfg.AbUpdate == nil || r.cfg.AbUpdate.ID != id {
			return "", enginerr.New(enginerr.Internal, "graph.Flatten", fmt.Sprintf("ab pair %q has no ab_update config", id))
		}
		if r.updateSideB {
			return r.cfg.AbUpdate.VolumeBID, nil
		}
		return r.cfg.AbUpdate.VolumeAID, nil
	default:
		return "", enginerr.New(enginerr.Internal, "graph.Flatten", fmt.Sprintf("unhandled node kind for %q", id))
	}
}

// FlattenFully repeatedly flattens id until it reaches a fixed point
// (typically an A/B pair resolving straight through to its selected side,
// which itself may be a raid/encryption/verity id that path lookup then
// resolves directly).
func (r *Resolver) FlattenFully(id string) (string, error) {
	seen := map[string]bool{}
	cur := id
	for {
		if seen[cur] {
			return "", enginerr.New(enginerr.Internal, "graph.FlattenFully", fmt.Sprintf("cycle flattening %q", id))
		}
		seen[cur] = true
		next, err := r.Flatten(cur)
		if err != nil {
			return "", err
		}
		if next == cur {
			return cur, nil
		}
		cur = next
	}
}
