// Package hooks runs HostConfiguration.Scripts' post-provision and
// post-configure hook scripts, writes AdditionalFiles, and joins health
// checks. Grounded on original_source/crates/trident/src/subsystems/
// hooks.rs (listed in original_source/_INDEX.md), generalized from the
// original's staged-file/source-path union onto this engine's simpler
// Script.Path-only model.
package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-edge-platform/host-servicer/collaborators/hooks"
	"github.com/open-edge-platform/host-servicer/collaborators/scripts"
	enginectx "github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// Subsystem applies hook scripts, additional files, and health checks in
// the registry's "hooks" slot.
type Subsystem struct {
	Scripts scripts.Runner
}

// New returns a Subsystem using the default shell-backed script runner.
func New() *Subsystem {
	return &Subsystem{Scripts: scripts.NewShellRunner()}
}

func (s *Subsystem) Name() string { return "hooks" }

// Propose never drives servicing-type selection: hooks run at whatever
// level another subsystem already proposed.
func (s *Subsystem) Propose(ec *enginectx.EngineContext) (config.ServicingType, error) {
	return config.NoActive, nil
}

// Validate checks that every declared script names a path and that every
// health check names exactly one probe kind, mirroring the original's
// dynamic script-path existence check.
func (s *Subsystem) Validate(ec *enginectx.EngineContext) error {
	for _, sc := range ec.NewSpec.Scripts {
		if sc.Path == "" {
			return enginerr.New(enginerr.InvalidInput, "hooks.Validate",
				fmt.Sprintf("script %q declares no path", sc.Name))
		}
		if sc.Phase != config.PhasePreServicing && sc.Phase != config.PhasePostProvision &&
			sc.Phase != config.PhasePostConfigure {
			return enginerr.New(enginerr.InvalidInput, "hooks.Validate",
				fmt.Sprintf("script %q declares unrecognized phase %q", sc.Name, sc.Phase))
		}
	}
	for _, c := range ec.NewSpec.HealthChecks {
		hasSystemd := len(c.SystemdServices) > 0
		hasScript := c.ScriptPath != ""
		if hasSystemd == hasScript {
			return enginerr.New(enginerr.InvalidInput, "hooks.Validate",
				fmt.Sprintf("health check %q must set exactly one of systemdServices or scriptPath", c.Name))
		}
	}
	return nil
}

func (s *Subsystem) Prepare(ec *enginectx.EngineContext) error { return nil }

// Provision runs postProvision scripts against newRoot (the live system
// for in-place servicing, where newRoot is "").
func (s *Subsystem) Provision(ec *enginectx.EngineContext, newRoot string) error {
	return s.Scripts.Run(ec.NewSpec.Scripts, config.PhasePostProvision, newRoot, s.environment(ec, newRoot))
}

// Configure writes AdditionalFiles, runs postConfigure scripts, then joins
// health checks — the one place in this engine's pipeline that fans work
// out across goroutines (spec §5).
func (s *Subsystem) Configure(ec *enginectx.EngineContext, execRoot string) error {
	for _, f := range ec.NewSpec.AdditionalFiles {
		if err := writeAdditionalFile(execRoot, f); err != nil {
			return err
		}
	}

	if err := s.Scripts.Run(ec.NewSpec.Scripts, config.PhasePostConfigure, execRoot, s.environment(ec, execRoot)); err != nil {
		return err
	}

	return hooks.RunAll(buildChecks(ec.NewSpec.HealthChecks, execRoot))
}

func (s *Subsystem) environment(ec *enginectx.EngineContext, root string) scripts.Environment {
	return scripts.Environment{
		ServicingType: ec.ServicingType,
		TargetRoot:    root,
		PhonehomeURL:  ec.NewSpec.InternalParamString("phonehomeUrl"),
	}
}

// writeAdditionalFile places one AdditionalFile under root, defaulting to
// mode 0664 when the spec declares none (matching the original's default).
func writeAdditionalFile(root string, f config.AdditionalFile) error {
	dest := filepath.Join(root, f.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "hooks.writeAdditionalFile",
			"failed to create parent directory for "+f.Path, err)
	}
	mode := os.FileMode(f.Mode)
	if mode == 0 {
		mode = 0664
	}
	if err := os.WriteFile(dest, []byte(f.Content), mode); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "hooks.writeAdditionalFile", "failed to write "+f.Path, err)
	}
	return nil
}

// buildChecks turns each declared HealthCheck into a collaborators/hooks.Check.
func buildChecks(list []config.HealthCheck, execRoot string) []hooks.Check {
	out := make([]hooks.Check, 0, len(list))
	for _, c := range list {
		c := c
		out = append(out, hooks.Check{
			Name:    c.Name,
			Timeout: timeoutOf(c),
			Run: func(ctx context.Context) error {
				if len(c.SystemdServices) > 0 {
					return runSystemdCheck(ctx, c.SystemdServices, execRoot)
				}
				_, err := shell.ExecCmd(c.ScriptPath, true, execRoot, nil)
				return err
			},
		})
	}
	return out
}

func timeoutOf(c config.HealthCheck) time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func runSystemdCheck(ctx context.Context, services []string, execRoot string) error {
	cmd := "systemctl status " + strings.Join(services, " ")
	out, err := shell.ExecCmd(cmd, true, execRoot, []string{"SYSTEMD_IGNORE_CHROOT=true"})
	if err != nil {
		return fmt.Errorf("service(s) %s not active: %w (%s)", strings.Join(services, ","), err, out)
	}
	return nil
}
