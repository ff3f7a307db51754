// Package mosconfig occupies the "mos-config" slot in the orchestrator's
// fixed subsystem registry. Nothing in this engine's configuration model
// names a distinct responsibility for it beyond its registry position, so
// it runs first and does nothing — a placeholder for whatever
// management-OS-specific provisioning a given deployment wires in ahead
// of storage.
package mosconfig

import (
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
)

// Subsystem is a no-op occupying the registry's "mos-config" slot.
type Subsystem struct{}

// New returns a Subsystem.
func New() *Subsystem { return &Subsystem{} }

func (s *Subsystem) Name() string { return "mos-config" }

func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	return config.NoActive, nil
}

func (s *Subsystem) Validate(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Prepare(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error { return nil }

func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error { return nil }
