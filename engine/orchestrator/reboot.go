package orchestrator

import (
	"time"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// RebootWatchdogTimeout is the 10-minute upper bound spec §5 places on the
// reboot suspension point.
var RebootWatchdogTimeout = 10 * time.Minute

// RebootFunc issues the actual reboot request (e.g. `shutdown -r now`).
// A real reboot never returns: the kernel tears the process down first.
// If it does return, the watchdog below treats that as "did not go down."
type RebootFunc func() error

// DefaultReboot shells out to systemctl, matching the rest of the engine's
// external-tool calls through internal/utils/shell.
func DefaultReboot() error {
	_, err := shell.ExecCmd("systemctl reboot", true, "", nil)
	return err
}

// RebootWithWatchdog calls reboot and waits up to RebootWatchdogTimeout for
// the process to be killed by the actual kernel reboot. A reboot error is
// returned at once. If reboot returns successfully and the watchdog period
// then elapses without the process dying, or reboot itself does not return
// within the period, that's treated as a failed reboot per spec §5.
func RebootWithWatchdog(reboot RebootFunc) error {
	done := make(chan error, 1)
	go func() { done <- reboot() }()

	select {
	case err := <-done:
		if err != nil {
			return enginerr.Wrap(enginerr.Servicing, "orchestrator.RebootWithWatchdog", "reboot command failed", err)
		}
		time.Sleep(RebootWatchdogTimeout)
		return enginerr.New(enginerr.Servicing, "orchestrator.RebootWithWatchdog",
			"system did not go down within the reboot watchdog period")
	case <-time.After(RebootWatchdogTimeout):
		return enginerr.New(enginerr.Servicing, "orchestrator.RebootWithWatchdog",
			"reboot command did not complete within the watchdog period")
	}
}
