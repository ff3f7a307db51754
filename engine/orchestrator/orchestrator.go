package orchestrator

import (
	"github.com/open-edge-platform/host-servicer/engine/bootentries"
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/graph"
	"github.com/open-edge-platform/host-servicer/engine/newroot"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/datastore"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// osModifierHelperPath is the well-known host location of the OS-modifier
// helper binary spec §4.2 step 5 bind-mounts into the newroot when present.
const osModifierHelperPath = "/usr/libexec/hostsvc/os-modifier"

// requiresNewroot reports whether a servicing type mounts a scratch
// newroot and runs Configure inside a chroot on it, per spec §4.4: true
// for clean install and A/B update, false for every in-place type.
func requiresNewroot(t config.ServicingType) bool {
	return t == config.CleanInstall || t == config.AbUpdate
}

// skipsConfigurePhase reports whether this servicing action skips every
// subsystem's Configure step outright, per spec §9: when UKI and verity
// are both active the original skips the entire configure phase, and any
// configuration that would have run there must be expressed through the
// image itself or rejected at validate time. Subsystems that must still
// act on a UKI+verity build (the firmware boot-order commit) do so from
// Provision instead.
func skipsConfigurePhase(spec *config.HostConfiguration) bool {
	return spec.Uki.Enabled && spec.VerityActive()
}

// Orchestrator drives the stage/finalize protocol over a Registry.
type Orchestrator struct {
	Store       *datastore.DataStore
	Registry    Registry
	ScratchPath string

	// NoTransition, when set, skips the reboot step in Finalize (the
	// internal parameter spec §4.4 names NO_TRANSITION).
	NoTransition bool
}

// New returns an Orchestrator bound to store and reg, using the default
// newroot scratch path.
func New(store *datastore.DataStore, reg Registry) *Orchestrator {
	return &Orchestrator{Store: store, Registry: reg, ScratchPath: newroot.DefaultScratchPath}
}

// SelectServicingType calls Propose on every registered subsystem and
// returns the maximum, per spec §4.4's max-over-proposals rule. Only the
// storage subsystem may legally propose config.AbUpdate; callers that
// care enforce that separately (the type ordering itself doesn't know
// which subsystem produced a given proposal).
func (o *Orchestrator) SelectServicingType(ec *context.EngineContext) (config.ServicingType, error) {
	winner := config.NoActive
	for _, s := range o.Registry.Ordered() {
		t, err := s.Propose(ec)
		if err != nil {
			return config.NoActive, enginerr.Wrap(enginerr.Internal, "orchestrator.SelectServicingType",
				"subsystem "+s.Name()+" failed to propose a servicing type", err)
		}
		if t > winner {
			winner = t
		}
	}
	return winner, nil
}

// StageResult carries what Finalize needs to complete a staged action.
type StageResult struct {
	Mount         *newroot.NewrootMount // nil for in-place servicing types
	ExecRoot      string                // chroot path Configure ran against, "" for in-place
	ServicingType config.ServicingType

	// StagedUkiFileName is the boot subsystem's committed UKI rename, if
	// any; pass it to Finalize to set BootNext on the trial boot.
	StagedUkiFileName string
}

// Stage runs validate/prepare/provision/configure for every registered
// subsystem in RegistryOrder. On success the newroot (if any) is left
// mounted for Finalize to unmount; on failure it is unmounted
// immediately and HostStatus is left untouched.
func (o *Orchestrator) Stage(ec *context.EngineContext) (*StageResult, error) {
	var mount *newroot.NewrootMount
	execRoot := ""

	if requiresNewroot(ec.ServicingType) {
		m, err := newroot.Prepare(o.ScratchPath)
		if err != nil {
			return nil, err
		}
		mount = m
		execRoot = m.ScratchPath()
	}

	stageFailed := func(err error) (*StageResult, error) {
		if mount != nil {
			if cerr := mount.Close(); cerr != nil {
				logger.Logger().Warnf("orchestrator: failed to unmount newroot after stage failure: %v", cerr)
			}
		}
		return nil, err
	}

	for _, s := range o.Registry.Ordered() {
		if err := s.Validate(ec); err != nil {
			return stageFailed(enginerr.Wrap(enginerr.KindOf(err), "orchestrator.Stage",
				"subsystem "+s.Name()+" failed validation", err))
		}
	}
	skipConfigure := skipsConfigurePhase(ec.NewSpec)

	for _, s := range o.Registry.Ordered() {
		if err := s.Prepare(ec); err != nil {
			return stageFailed(enginerr.Wrap(enginerr.KindOf(err), "orchestrator.Stage",
				"subsystem "+s.Name()+" failed prepare", err))
		}
		newRootPath := ""
		if mount != nil {
			newRootPath = mount.ScratchPath()
		}
		if err := s.Provision(ec, newRootPath); err != nil {
			return stageFailed(enginerr.Wrap(enginerr.KindOf(err), "orchestrator.Stage",
				"subsystem "+s.Name()+" failed provision", err))
		}
		if !skipConfigure {
			if err := s.Configure(ec, execRoot); err != nil {
				return stageFailed(enginerr.Wrap(enginerr.KindOf(err), "orchestrator.Stage",
					"subsystem "+s.Name()+" failed configure", err))
			}
		}

		// The storage subsystem resolves and records every block-device
		// path this servicing action needs; once it has run, the newroot
		// hierarchy itself can be assembled on top. Construction protocol
		// (spec §4.2) is the orchestrator's own responsibility rather than
		// any one subsystem's, since it alone holds the NewrootMount that
		// owns the mount list Finalize later unwinds.
		if s.Name() == "storage" && mount != nil {
			if err := o.assembleNewroot(ec, mount); err != nil {
				return stageFailed(err)
			}
		}
	}

	if err := o.Store.WithStatus(func(status *config.HostStatus) error {
		// Spec/SpecOld only move here, on a successful stage: spec.md §9
		// requires "staging failures never alter spec", and the post-reboot
		// validator needs both the just-applied spec and the prior one to
		// revert to (spec.md §4.5's "validation failures are the only state
		// that restores spec_old to spec").
		status.SpecOld = status.Spec
		status.Spec = ec.NewSpec
		status.ServicingState = config.Staged
		status.ServicingType = ec.ServicingType
		status.InstallIndex = ec.InstallIndex
		status.PartitionPaths = ec.PartitionPaths()
		status.DiskUUIDs = ec.DiskUUIDs()
		status.StagedUkiFileName = ec.StagedUkiFileName
		return nil
	}); err != nil {
		return stageFailed(err)
	}

	return &StageResult{
		Mount:             mount,
		ExecRoot:          execRoot,
		ServicingType:     ec.ServicingType,
		StagedUkiFileName: ec.StagedUkiFileName,
	}, nil
}

// assembleNewroot mounts every declared filesystem into mount, per the
// construction protocol spec §4.2 describes: resolve each filesystem's
// device id through the storage graph, mount in ascending mount-path
// order, then tmpfs at /tmp and /run, then bind the OS-modifier helper
// binary if present on the host.
func (o *Orchestrator) assembleNewroot(ec *context.EngineContext, mount *newroot.NewrootMount) error {
	resolver := graph.NewResolver(ec.Graph, ec.NewSpec, ec.UpdatesB())
	resolve := func(deviceID string) (string, error) {
		flat, err := resolver.FlattenFully(deviceID)
		if err != nil {
			return "", err
		}
		return ec.PartitionPath(flat)
	}

	liveMounts, err := newroot.DiscoverLiveMounts()
	if err != nil {
		return err
	}
	if err := mount.AssembleFilesystems(ec.NewSpec, resolve, liveMounts); err != nil {
		return err
	}
	if err := mount.MountTmpfs(); err != nil {
		return err
	}
	return mount.BindHelperBinary(osModifierHelperPath, osModifierHelperPath)
}

// Finalize completes a successfully staged action: it sets the firmware
// boot variables via boot, persists HostStatus as Finalized, unmounts
// the staged newroot (if any), then reboots unless NoTransition is set.
func (o *Orchestrator) Finalize(ec *context.EngineContext, result *StageResult, boot *bootentries.BootEntries, stagedUkiFileName string, reboot RebootFunc) error {
	if boot != nil && stagedUkiFileName != "" {
		if err := boot.CommitTrial(stagedUkiFileName); err != nil {
			return err
		}
	}

	if err := o.Store.WithStatus(func(status *config.HostStatus) error {
		status.ServicingState = config.Finalized
		return nil
	}); err != nil {
		return err
	}

	if result.Mount != nil {
		if err := result.Mount.Close(); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "orchestrator.Finalize", "failed to unmount newroot before reboot", err)
		}
	}

	if o.NoTransition {
		return nil
	}
	if reboot == nil {
		reboot = DefaultReboot
	}
	return RebootWithWatchdog(reboot)
}
