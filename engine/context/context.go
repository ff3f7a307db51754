// Package context builds the EngineContext: the read-mostly snapshot every
// servicing action freezes at its start, per spec §3 ("EngineContext: a
// read-mostly snapshot built at the top of a servicing action. It owns no
// block devices; it holds identifier→path lookup and the storage graph").
// Grounded on the teacher's RawMaker (internal/image/rawmaker), generalized
// from "one chroot + one template" into "one frozen spec pair + graph".
package context

import (
	"fmt"
	"sync"

	"github.com/open-edge-platform/host-servicer/collaborators/image"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/engine/graph"
)

// EngineContext is the immutable-per-step bag described in spec §2. It is
// built once at the top of a servicing action and handed to every subsystem
// by reference; nothing in this package mutates it after Build returns.
type EngineContext struct {
	NewSpec *config.HostConfiguration
	OldSpec *config.HostConfiguration

	ServicingType  config.ServicingType
	AbActiveVolume config.AbActiveVolume
	InstallIndex   int

	Image image.Handle
	Graph *graph.Graph

	// StagedUkiFileName is set by the boot subsystem's Provision step when
	// a UKI build commits a boot-order rename, so Stage can hand it to the
	// caller for a later Finalize call (spec §4.3's trial-boot BootNext).
	// Committed in Provision rather than Configure so it still happens on
	// a UKI+verity build, which skips every subsystem's configure phase.
	// Empty for non-UKI builds and for servicing types that never restage
	// boot files.
	StagedUkiFileName string

	mu             sync.RWMutex
	partitionPaths map[string]string
	diskUUIDs      map[string]string
}

// Build constructs an EngineContext from the current HostStatus, the
// proposed new configuration, the chosen servicing type, and an optional
// image handle (nil for in-place normal updates that touch no image).
func Build(status *config.HostStatus, newSpec *config.HostConfiguration, servicingType config.ServicingType, img image.Handle) (*EngineContext, error) {
	if newSpec == nil {
		return nil, enginerr.New(enginerr.Internal, "context.Build", "new spec is nil")
	}

	g, err := graph.New(newSpec)
	if err != nil {
		return nil, err
	}

	ec := &EngineContext{
		NewSpec:        newSpec,
		OldSpec:        status.Spec,
		ServicingType:  servicingType,
		AbActiveVolume: status.AbActiveVolume,
		InstallIndex:   status.InstallIndex,
		Image:          img,
		Graph:          g,
		partitionPaths: copyStrMap(status.PartitionPaths),
		diskUUIDs:      copyStrMap(status.DiskUUIDs),
	}
	return ec, nil
}

func copyStrMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RecordPartitionPath commits id → path to the context. This is the one
// mutation EngineContext permits after Build: the storage engine populates
// paths incrementally as it provisions devices, and downstream subsystems
// (newroot, esp) read them back through the same instance.
func (ec *EngineContext) RecordPartitionPath(id, path string) error {
	if path == "" {
		return enginerr.New(enginerr.Internal, "context.RecordPartitionPath",
			fmt.Sprintf("refusing to record empty path for %q", id))
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.partitionPaths[id] = path
	return nil
}

// PartitionPath looks up the block-device path for id. Per the design note
// preserving test_update_grub_root_uuid_empty, an empty string recorded
// against id is treated the same as a missing entry: both are errors, never
// a silently empty path handed to a caller.
func (ec *EngineContext) PartitionPath(id string) (string, error) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	path, ok := ec.partitionPaths[id]
	if !ok || path == "" {
		return "", enginerr.New(enginerr.Servicing, "context.PartitionPath",
			fmt.Sprintf("no block-device path recorded for %q", id))
	}
	return path, nil
}

// PartitionPaths returns a snapshot copy of all recorded paths, suitable for
// persisting into HostStatus.
func (ec *EngineContext) PartitionPaths() map[string]string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return copyStrMap(ec.partitionPaths)
}

// RecordDiskUUID commits a disk id's live UUID to the context.
func (ec *EngineContext) RecordDiskUUID(id, uuid string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.diskUUIDs[id] = uuid
}

// DiskUUID looks up the UUID recorded for a disk id.
func (ec *EngineContext) DiskUUID(id string) (string, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	uuid, ok := ec.diskUUIDs[id]
	return uuid, ok
}

// DiskUUIDs returns a snapshot copy of all recorded disk UUIDs.
func (ec *EngineContext) DiskUUIDs() map[string]string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return copyStrMap(ec.diskUUIDs)
}

// UpdatesB reports whether the update targets the B side of an A/B pair,
// i.e. the active side is currently A. When the active side is B or unset
// (clean install, which always provisions A first) it returns false.
func (ec *EngineContext) UpdatesB() bool {
	return ec.AbActiveVolume == config.AbA
}
