// Package scripts defines the narrow contract the engine consumes for the
// (out-of-scope) hook script runner, per spec §1 ("Script execution hooks
// ... consumed via narrow interfaces only"). The default implementation
// shells out through internal/utils/shell, the way every other external
// tool invocation in this engine works.
package scripts

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// Runner executes every Script whose Phase matches the caller's phase
// argument, in declaration order, stopping at the first failure.
type Runner interface {
	Run(scripts []config.Script, phase, execRoot string, env Environment) error
}

// Environment is the fixed set of values injected into every hook script's
// process environment, per spec §6.
type Environment struct {
	ServicingType config.ServicingType
	TargetRoot    string
	PhonehomeURL  string
}

// envVars renders e as NAME=value pairs for shell.Executor's envVal
// argument. PHONEHOME_URL is only set when non-empty, per spec §6 ("optional").
func (e Environment) envVars() []string {
	vars := []string{
		"SERVICING_TYPE=" + e.ServicingType.String(),
		"TARGET_ROOT=" + e.TargetRoot,
	}
	if e.PhonehomeURL != "" {
		vars = append(vars, "PHONEHOME_URL="+e.PhonehomeURL)
	}
	return vars
}

// ShellRunner is the default Runner, executing each script's Path as a
// command through shell.Default.
type ShellRunner struct{}

func NewShellRunner() *ShellRunner { return &ShellRunner{} }

// Run executes every script matching phase in order. A script with an
// empty Path is a configuration error, not a silent skip.
func (r *ShellRunner) Run(list []config.Script, phase, execRoot string, env Environment) error {
	for _, s := range list {
		if s.Phase != phase {
			continue
		}
		if s.Path == "" {
			return enginerr.New(enginerr.InvalidInput, "scripts.Run",
				fmt.Sprintf("hook script %q declares no path", s.Name))
		}
		if _, err := shell.ExecCmd(s.Path, true, execRoot, env.envVars()); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "scripts.Run",
				fmt.Sprintf("hook script %q (phase %s) failed", s.Name, phase), err)
		}
	}
	return nil
}
