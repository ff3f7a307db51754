package osconfig

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// EnsureMachineID implements spec §6's machine-id rule: on a clean
// install with verity in use, regenerate via systemd-firstboot; on an
// A/B update, carry the running system's /etc/machine-id over verbatim.
// execRoot is the target root (chroot path for clean install/A-B update,
// "" for an in-place normal update, which never touches machine-id).
func EnsureMachineID(ec *context.EngineContext, execRoot string) error {
	if execRoot == "" {
		return nil
	}

	if ec.ServicingType == config.CleanInstall {
		if len(ec.NewSpec.Verity) == 0 {
			return nil
		}
		cmd := fmt.Sprintf("systemd-firstboot --root=%s --setup-machine-id", execRoot)
		if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "osconfig.EnsureMachineID", "failed to regenerate machine-id", err)
		}
		return nil
	}

	if ec.ServicingType == config.AbUpdate {
		cmd := fmt.Sprintf("cp -a /etc/machine-id %s/etc/machine-id", execRoot)
		if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "osconfig.EnsureMachineID", "failed to carry over machine-id", err)
		}
	}

	return nil
}
