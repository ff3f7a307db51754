// Package initrd regenerates the host-specific initrd through the
// collaborators/initrd.Regenerator interface. Grounded on original_source/
// crates/trident/src/subsystems/initrd.rs (listed in _INDEX.md): its
// UKI early-skip and diagnostic-command sequencing, with the actual
// dracut/mkinitrd invocation out of scope.
package initrd

import (
	collabinitrd "github.com/open-edge-platform/host-servicer/collaborators/initrd"
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// Subsystem regenerates the initrd in the registry's "initrd" slot.
type Subsystem struct {
	Regenerator collabinitrd.Regenerator
}

// New returns a Subsystem using the default no-op regenerator.
func New() *Subsystem {
	return &Subsystem{Regenerator: collabinitrd.NewNoopRegenerator()}
}

func (s *Subsystem) Name() string { return "initrd" }

func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	return config.NoActive, nil
}

func (s *Subsystem) Validate(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Prepare(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error { return nil }

// Configure skips regeneration entirely for a UKI build: a UKI image
// bundles its own initrd at image-build time, so there is nothing left
// for this host to regenerate. Otherwise it logs a handful of disk-layout
// diagnostics (matching the original's pre-regeneration sanity dump) and
// regenerates.
func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error {
	if ec.NewSpec.Uki.Enabled {
		return nil
	}

	logDiskDiagnostics(execRoot)

	debug := ec.NewSpec.InternalParam("dracutDebug")
	if err := s.Regenerator.Regenerate(execRoot, debug); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "initrd.Configure", "failed to regenerate initrd", err)
	}
	return nil
}

// logDiskDiagnostics dumps fstab and block-device layout before
// regenerating, the way the original does immediately before invoking
// mkinitrd, to aid post-mortem debugging of a failed regeneration.
func logDiskDiagnostics(execRoot string) {
	for _, cmd := range []string{"cat /etc/fstab", "lsblk --json", "blkid"} {
		out, err := shell.ExecCmd(cmd, true, execRoot, nil)
		if err != nil {
			logger.Logger().Warnf("initrd: diagnostic command %q failed: %v", cmd, err)
			continue
		}
		logger.Logger().Debugf("initrd: %s ->\n%s", cmd, out)
	}
}
