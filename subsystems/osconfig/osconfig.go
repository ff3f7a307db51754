// Package osconfig applies HostConfiguration.OsConfig's hostname, users,
// service enablement, and kernel cmdline to the servicing target.
// Grounded on original_source/src/subsystems/osconfig/mod.rs (listed in
// the retrieval pack's _INDEX.md), reimplemented as shell calls through
// internal/utils/shell the way the rest of the engine talks to external
// tools (hostnamectl/useradd/systemctl/grubby).
package osconfig

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// Subsystem applies OsConfig in the registry's "osconfig" slot.
type Subsystem struct{}

func New() *Subsystem { return &Subsystem{} }

func (s *Subsystem) Name() string { return "osconfig" }

// Propose never requires more than an in-place update: none of hostname,
// user, service, or cmdline changes force a reboot or an A/B cycle.
func (s *Subsystem) Propose(ec *context.EngineContext) (config.ServicingType, error) {
	if ec.NewSpec.OsConfig.Hostname != "" || len(ec.NewSpec.OsConfig.Users) > 0 ||
		len(ec.NewSpec.OsConfig.Services) > 0 || len(ec.NewSpec.OsConfig.KernelCmdline) > 0 {
		return config.NormalUpdate, nil
	}
	return config.NoActive, nil
}

func (s *Subsystem) Validate(ec *context.EngineContext) error {
	for _, u := range ec.NewSpec.OsConfig.Users {
		if u.Name == "" {
			return enginerr.New(enginerr.InvalidInput, "osconfig.Validate", "user entry with empty name")
		}
	}
	return nil
}

func (s *Subsystem) Prepare(ec *context.EngineContext) error { return nil }

func (s *Subsystem) Provision(ec *context.EngineContext, newRoot string) error { return nil }

// Configure runs against execRoot (chroot path, or "" for the live
// system), applying hostname, users, services, and kernel cmdline.
func (s *Subsystem) Configure(ec *context.EngineContext, execRoot string) error {
	oc := ec.NewSpec.OsConfig

	if oc.Hostname != "" && !shouldSkipHostname(ec) {
		if _, err := shell.ExecCmd(fmt.Sprintf("hostnamectl set-hostname %s", oc.Hostname), true, execRoot, nil); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "osconfig.Configure", "failed to set hostname", err)
		}
	}

	for _, u := range oc.Users {
		if err := s.configureUser(u, execRoot); err != nil {
			return err
		}
	}

	for _, svc := range oc.Services {
		verb := "enable"
		if svc.State == config.ServiceDisabled {
			verb = "disable"
		}
		cmd := fmt.Sprintf("systemctl %s %s", verb, svc.Name)
		if _, err := shell.ExecCmd(cmd, true, execRoot, nil); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "osconfig.Configure", "failed to "+verb+" service "+svc.Name, err)
		}
	}

	if len(oc.KernelCmdline) > 0 {
		if err := s.configureKernelCmdline(oc.KernelCmdline, execRoot); err != nil {
			return err
		}
	}

	if err := EnsureMachineID(ec, execRoot); err != nil {
		return err
	}

	return nil
}

func shouldSkipHostname(ec *context.EngineContext) bool {
	return ec.NewSpec.InternalParam("disableHostnameCarryOver") && ec.ServicingType != config.CleanInstall
}

func (s *Subsystem) configureUser(u config.User, execRoot string) error {
	args := "-m"
	if len(u.SecondaryGroups) > 0 {
		args += " -G " + strings.Join(u.SecondaryGroups, ",")
	}
	if u.PasswordHash != "" {
		args += fmt.Sprintf(" -p %q", u.PasswordHash)
	}
	cmd := fmt.Sprintf("useradd %s %s", args, u.Name)
	if _, err := shell.ExecCmd(cmd, true, execRoot, nil); err != nil {
		logger.Logger().Debugf("osconfig: useradd for %q returned %v (may already exist)", u.Name, err)
	}

	if len(u.SSHPublicKeys) > 0 {
		home := "/home/" + u.Name
		authorizedKeys := strings.Join(u.SSHPublicKeys, "\n") + "\n"
		cmd := fmt.Sprintf("sh -c 'mkdir -p %s/.ssh && cat > %s/.ssh/authorized_keys'", home, home)
		if _, err := shell.ExecCmdWithInput(authorizedKeys, cmd, true, execRoot, nil); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "osconfig.configureUser",
				"failed to install authorized_keys for "+u.Name, err)
		}
	}
	return nil
}

func (s *Subsystem) configureKernelCmdline(args []string, execRoot string) error {
	cmd := fmt.Sprintf("grubby --update-kernel=ALL --args=%q", strings.Join(args, " "))
	if _, err := shell.ExecCmd(cmd, true, execRoot, nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "osconfig.configureKernelCmdline", "failed to update kernel cmdline", err)
	}
	return nil
}
