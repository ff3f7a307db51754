package main

import (
	"os"

	"github.com/open-edge-platform/host-servicer/collaborators/image"
	"github.com/open-edge-platform/host-servicer/engine/orchestrator"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/datastore"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/subsystems/boot"
	"github.com/open-edge-platform/host-servicer/subsystems/hooks"
	"github.com/open-edge-platform/host-servicer/subsystems/initrd"
	"github.com/open-edge-platform/host-servicer/subsystems/management"
	"github.com/open-edge-platform/host-servicer/subsystems/mosconfig"
	"github.com/open-edge-platform/host-servicer/subsystems/network"
	"github.com/open-edge-platform/host-servicer/subsystems/osconfig"
	"github.com/open-edge-platform/host-servicer/subsystems/selinux"
	"github.com/open-edge-platform/host-servicer/subsystems/storage"
)

// statusPath is the --status-path persistent flag shared by every
// subcommand that touches HostStatus.
var statusPath string

// buildRegistry wires one instance of every subsystem into the
// orchestrator's fixed RegistryOrder slots.
func buildRegistry() orchestrator.Registry {
	return orchestrator.Registry{
		"mos-config": mosconfig.New(),
		"storage":    storage.New(),
		"boot":       boot.New(),
		"network":    network.New(),
		"osconfig":   osconfig.New(),
		"management": management.New(),
		"hooks":      hooks.New(),
		"initrd":     initrd.New(),
		"selinux":    selinux.New(),
	}
}

// openStore opens the DataStore at --status-path (or the default location
// when unset).
func openStore() (*datastore.DataStore, error) {
	return datastore.New(statusPath)
}

// loadHostConfiguration reads and validates a HostConfiguration file from
// disk, per internal/config.LoadHostConfiguration's schema-then-semantic
// validation pipeline.
func loadHostConfiguration(path string) (*config.HostConfiguration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "main.loadHostConfiguration", "failed to read configuration file", err)
	}
	return config.LoadHostConfiguration(raw)
}

// openImageHandle opens path as the OS image this servicing action
// deploys, or returns nil when path is empty (in-place servicing actions
// that touch no image).
func openImageHandle(path string) (image.Handle, error) {
	if path == "" {
		return nil, nil
	}
	return image.NewFileHandle(path)
}
