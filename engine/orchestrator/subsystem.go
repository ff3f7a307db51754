// Package orchestrator runs the two-phase stage/finalize servicing
// protocol over a fixed-order subsystem registry, per spec §4.4.
// Grounded on the teacher's RawMaker.BuildRawImage (internal/image/
// rawmaker/rawmaker.go): a single top-to-bottom pipeline with
// defer-based cleanup on both the success and error paths, generalized
// from "one image build" to "N subsystems run in registry order, each
// through validate/prepare/provision/configure."
package orchestrator

import (
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
)

// Subsystem is the contract every servicing subsystem implements. The
// orchestrator calls the four methods in order for every subsystem on
// every servicing action; a subsystem with nothing to do in a given
// step returns nil immediately.
type Subsystem interface {
	// Name identifies the subsystem in logs and registry ordering.
	Name() string
	// Propose returns the most invasive servicing type this subsystem's
	// view of NewSpec vs OldSpec requires. Only the storage subsystem
	// may return config.AbUpdate.
	Propose(ec *context.EngineContext) (config.ServicingType, error)
	// Validate performs read-only checks against ec; no side effects.
	Validate(ec *context.EngineContext) error
	// Prepare performs side effects that do not require a mounted
	// newroot (e.g. partitioning a disk still being provisioned).
	Prepare(ec *context.EngineContext) error
	// Provision writes the subsystem's artifacts under newRoot, which
	// is the mounted newroot filesystem root for clean install and A/B
	// update, or "" for in-place normal updates that never mount one.
	Provision(ec *context.EngineContext, newRoot string) error
	// Configure runs commands against execRoot: a chroot path for clean
	// install and A/B update, or "" to run directly against the live
	// system for in-place normal updates.
	Configure(ec *context.EngineContext, execRoot string) error
}

// RegistryOrder is the fixed subsystem execution order from spec §4.4.
var RegistryOrder = []string{
	"mos-config",
	"storage",
	"boot",
	"network",
	"osconfig",
	"management",
	"hooks",
	"initrd",
	"selinux",
}

// Registry holds one Subsystem per registry-order name. Subsystems not
// present in the map are skipped; this lets a given build wire only
// the subsystems it needs (e.g. tests wiring a single fake subsystem).
type Registry map[string]Subsystem

// Ordered returns the registry's subsystems in RegistryOrder, omitting
// any name with no registered Subsystem.
func (r Registry) Ordered() []Subsystem {
	out := make([]Subsystem, 0, len(RegistryOrder))
	for _, name := range RegistryOrder {
		if s, ok := r[name]; ok {
			out = append(out, s)
		}
	}
	return out
}
