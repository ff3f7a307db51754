// Package storage wraps engine/storage and engine/graph behind the
// orchestrator.Subsystem interface, in the "storage" registry slot. Per
// spec §4.4, this is the only subsystem allowed to propose
// config.AbUpdate, triggered when the incoming image's identity differs
// from the currently-provisioned one.
package storage

import (
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/storage"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// Subsystem drives the storage-layout engine from the orchestrator's
// registry. live is the LiveDiskReader consulted for safety checks and
// partition adoption; New wires in the real go-diskfs-backed reader.
type Subsystem struct {
	live storage.LiveDiskReader
}

// New returns a Subsystem backed by the default go-diskfs LiveDiskReader.
func New() *Subsystem {
	return &Subsystem{live: storage.GoDiskfsReader{}}
}

// WithLiveDiskReader overrides the LiveDiskReader, for tests.
func WithLiveDiskReader(live storage.LiveDiskReader) *Subsystem {
	return &Subsystem{live: live}
}

func (s *Subsystem) Name() string { return "storage" }

// Propose implements spec §4.4's rule: a first-ever install proposes
// CleanInstall; an image-identity change on an already-provisioned host
// proposes AbUpdate; anything else (hostname/user/service-only changes
// surface through other subsystems) proposes NoActive.
func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	if ec.OldSpec == nil {
		return config.CleanInstall, nil
	}

	newIdentity := ec.NewSpec.ImageIdentity
	if ec.Image != nil {
		newIdentity = ec.Image.Identity()
	}
	if newIdentity != "" && newIdentity != ec.OldSpec.ImageIdentity {
		return config.AbUpdate, nil
	}
	return config.NoActive, nil
}

// Validate runs the non-destructive safety pass spec §4.1 requires before
// any partitioning or formatting action.
func (s *Subsystem) Validate(ec *context.EngineContext) error {
	return storage.SafetyCheck(ec.NewSpec, s.live)
}

// Prepare performs every disk-level action spec §4.1 describes: adoption,
// partition creation (or raw-GPT write), RAID assembly, encryption,
// verity activation, and swap formatting. None of this touches the
// mounted newroot; it resolves and records block-device paths into ec for
// the orchestrator's subsequent newroot assembly and for downstream
// subsystems (boot, osconfig) to read back.
func (s *Subsystem) Prepare(ec *context.EngineContext) error {
	for _, d := range ec.NewSpec.Disks {
		if err := s.prepareDisk(ec, d); err != nil {
			return err
		}
	}

	if err := s.prepareRaid(ec); err != nil {
		return err
	}
	if err := s.prepareEncryption(ec); err != nil {
		return err
	}
	if err := s.prepareVerity(ec); err != nil {
		return err
	}
	if ec.ServicingType == config.CleanInstall {
		if err := s.prepareSwap(ec); err != nil {
			return err
		}
	}
	return nil
}

// Provision performs no additional disk-level work: everything Prepare
// didn't already resolve is either out of scope for storage (newroot
// filesystem assembly is the orchestrator's own responsibility, since it
// alone holds the NewrootMount that owns the mount list) or belongs to
// another subsystem.
func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error { return nil }

// Configure renders /etc/fstab, /etc/crypttab, and /etc/mdadm/mdadm.conf
// into execRoot, per spec §4.1/§6.
func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error {
	return RenderStorageFiles(ec, execRoot)
}

// resolvePath looks up id's recorded block-device path, wrapping the
// context error with this subsystem's operation name for clearer traces.
func resolvePath(ec *context.EngineContext, id string) (string, error) {
	path, err := ec.PartitionPath(id)
	if err != nil {
		return "", enginerr.Wrap(enginerr.KindOf(err), "storage.resolvePath", "id "+id, err)
	}
	return path, nil
}
