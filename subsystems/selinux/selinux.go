// Package selinux applies HostConfiguration.OsConfig.SelinuxMode against
// the OS's existing SELinux state, delegating actual relabeling to the
// collaborators/selinux.Relabeler interface. Grounded on original_source/
// crates/trident/src/subsystems/selinux.rs (listed in _INDEX.md): its
// host-config/OS-state combination table and read-only-filesystem/verity
// incompatibility checks, with `setfiles` itself out of scope.
package selinux

import (
	"bufio"
	"os"
	"strings"

	"github.com/open-edge-platform/host-servicer/collaborators/selinux"
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// selinuxConfigPath is the well-known on-disk SELinux config file. A var
// rather than a const so tests can point it at a fixture.
var selinuxConfigPath = "/etc/selinux/config"

// Subsystem computes and applies the SELinux state in the registry's
// "selinux" slot.
type Subsystem struct {
	Relabeler selinux.Relabeler
}

// New returns a Subsystem using the default no-op relabeler.
func New() *Subsystem {
	return &Subsystem{Relabeler: selinux.NewNoopRelabeler()}
}

func (s *Subsystem) Name() string { return "selinux" }

func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	return config.NoActive, nil
}

func (s *Subsystem) Validate(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Prepare(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error { return nil }

// Configure only runs for clean install and A/B update (the original runs
// relabeling exclusively on those two servicing types, since a fresh or
// freshly-updated root is the only one that may need new contexts).
func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error {
	if ec.ServicingType != config.CleanInstall && ec.ServicingType != config.AbUpdate {
		return nil
	}

	hcMode := ec.NewSpec.OsConfig.SelinuxMode
	osType, osMode, osPresent, err := readSelinuxConfig(selinuxConfigPath)
	if err != nil {
		return err
	}

	finalMode, present, err := finalSelinuxState(hcMode, osMode, osPresent)
	if err != nil {
		return err
	}
	if !present || finalMode == config.SelinuxDisabled {
		return nil
	}

	if ec.NewSpec.VerityActive() && !ec.NewSpec.Uki.Enabled {
		if finalMode == config.SelinuxEnforcing {
			return enginerr.New(enginerr.InvalidInput, "selinux.Configure",
				"root verity and selinux enforcing are not supported together")
		}
	}

	return s.Relabeler.Relabel(osType, filesystemsToRelabel(ec.NewSpec))
}

// finalSelinuxState combines the Host Configuration's requested mode with
// the OS's existing state, per the original's table: an absent HC mode
// defers to the OS; HC-disabled forces disabled when the OS has any
// SELinux state, or stays absent when the OS has none; HC-permissive/
// -enforcing without any OS SELinux capability is an error; otherwise the
// HC mode wins outright.
func finalSelinuxState(hcMode config.SelinuxMode, osMode config.SelinuxMode, osPresent bool) (config.SelinuxMode, bool, error) {
	if hcMode == "" {
		return osMode, osPresent, nil
	}
	if hcMode == config.SelinuxDisabled {
		if !osPresent {
			return "", false, nil
		}
		return config.SelinuxDisabled, true, nil
	}
	if !osPresent {
		return "", false, enginerr.New(enginerr.InvalidInput, "selinux.finalSelinuxState",
			"selinux is enabled in the host configuration but the os has no selinux capability")
	}
	return hcMode, true, nil
}

// filesystemsToRelabel returns the mount paths of every declared, mounted,
// writable real filesystem — the original restricts this to filesystems
// that support SELinux (ext4/xfs); this engine's Filesystem.FsType already
// only names real on-disk types, so every mounted writable one qualifies.
func filesystemsToRelabel(spec *config.HostConfiguration) []string {
	var out []string
	for _, fs := range spec.Filesystems {
		if fs.Mount == nil {
			continue
		}
		if strings.Contains(fs.Mount.Options, "ro") && isReadOnlyOption(fs.Mount.Options) {
			continue
		}
		out = append(out, fs.Mount.Path)
	}
	return out
}

func isReadOnlyOption(options string) bool {
	for _, opt := range strings.Split(options, ",") {
		if strings.TrimSpace(opt) == "ro" {
			return true
		}
	}
	return false
}

// readSelinuxConfig parses SELINUXTYPE and SELINUX out of the OS's config
// file. present is false when the file does not exist at all, matching
// the original treating a missing file as "OS state not present" rather
// than an error.
func readSelinuxConfig(path string) (selinuxType string, mode config.SelinuxMode, present bool, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return "", "", false, nil
		}
		return "", "", false, enginerr.Wrap(enginerr.Servicing, "selinux.readSelinuxConfig",
			"failed to open "+path, openErr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "SELINUXTYPE="); ok {
			selinuxType = v
		}
		if v, ok := strings.CutPrefix(line, "SELINUX="); ok {
			mode = config.SelinuxMode(v)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", false, enginerr.Wrap(enginerr.Servicing, "selinux.readSelinuxConfig",
			"failed to read "+path, err)
	}
	return selinuxType, mode, true, nil
}
