// Package network applies HostConfiguration.Network through the
// collaborators/network.Renderer interface. Grounded on original_source/
// crates/trident/src/subsystems/network.rs (listed in _INDEX.md): its
// write/generate/apply sequencing and direct cloud-init-disable marker
// file write, with netplan rendering itself out of scope.
package network

import (
	"os"
	"path/filepath"

	collabnet "github.com/open-edge-platform/host-servicer/collaborators/network"
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// cloudInitDisablePath matches the original's marker file that tells
// cloud-init to leave networking alone once netplan owns it.
const cloudInitDisablePath = "/etc/cloud/cloud.cfg.d/99-disable-network-config.cfg"

const cloudInitDisableContent = "network: {config: disabled}\n"

// Subsystem applies network configuration in the registry's "network" slot.
type Subsystem struct {
	Renderer collabnet.Renderer
}

// New returns a Subsystem using the default no-op renderer.
func New() *Subsystem {
	return &Subsystem{Renderer: collabnet.NewNoopRenderer()}
}

func (s *Subsystem) Name() string { return "network" }

func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	return config.NoActive, nil
}

func (s *Subsystem) Validate(ec *context.EngineContext) error { return nil }

// Prepare removes any previously-applied netplan configuration when this
// run is updating an already-running host in place, so Configure starts
// from a clean slate rather than layering configuration. A/B update and
// clean install always target a freshly-assembled root with no stale
// config to remove.
func (s *Subsystem) Prepare(ec *context.EngineContext) error {
	if ec.NewSpec.Network == nil {
		return nil
	}
	switch ec.ServicingType {
	case config.HotPatch, config.NormalUpdate, config.UpdateAndReboot:
		return s.Renderer.Remove()
	default:
		return nil
	}
}

func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error { return nil }

// Configure writes and generates the new netplan configuration, then
// applies it immediately for in-place servicing types — A/B update and
// clean install boot into the new root fresh, so the applied network
// state there takes effect on that boot rather than this one.
func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error {
	if ec.NewSpec.Network == nil {
		return nil
	}

	if err := disableCloudInitNetworking(execRoot); err != nil {
		return err
	}

	if err := s.Renderer.Write(ec.NewSpec.Network); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "network.Configure", "failed to write netplan configuration", err)
	}
	if err := s.Renderer.Generate(); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "network.Configure", "failed to generate netplan configuration", err)
	}

	switch ec.ServicingType {
	case config.HotPatch, config.NormalUpdate, config.UpdateAndReboot:
		if err := s.Renderer.Apply(); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "network.Configure", "failed to apply netplan configuration", err)
		}
	}
	return nil
}

// disableCloudInitNetworking writes the cloud-init disable marker
// directly with os.WriteFile, matching the original's direct fs::write
// for this one file rather than routing it through the renderer.
func disableCloudInitNetworking(execRoot string) error {
	dest := filepath.Join(execRoot, cloudInitDisablePath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "network.disableCloudInitNetworking",
			"failed to create parent directory for cloud-init disable marker", err)
	}
	if err := os.WriteFile(dest, []byte(cloudInitDisableContent), 0644); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "network.disableCloudInitNetworking",
			"failed to write cloud-init disable marker", err)
	}
	return nil
}
