// Package display renders human-facing summaries of a servicing run,
// adapted from the teacher's post-build artifact summary into a
// post-servicing status box.
package display

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// PrintServicingSummary prints a highlighted box describing the outcome of
// a completed stage/finalize cycle: servicing type, resulting state, and
// the resolved block-device paths the orchestrator committed to status.
func PrintServicingSummary(status *config.HostStatus) {
	log := logger.Logger()

	log.Info("")
	log.Info("╔════════════════════════════════════════════════════════════════════════════╗")
	log.Info("║                    ✓ SERVICING COMPLETED                                   ║")
	log.Info("╚════════════════════════════════════════════════════════════════════════════╝")
	log.Info("")
	log.Infof("  Servicing Type:  %s", status.ServicingType)
	log.Infof("  Servicing State: %s", status.ServicingState)
	log.Infof("  Install Index:   %d", status.InstallIndex)
	log.Infof("  A/B Active:      %s", status.AbActiveVolume)
	log.Info("")

	if len(status.PartitionPaths) > 0 {
		log.Info("  Resolved Partitions:")
		for id, path := range status.PartitionPaths {
			log.Infof("    • %-20s %s", id, path)
		}
		log.Info("")
	}

	log.Info("════════════════════════════════════════════════════════════════════════════")
	log.Info("")
}

// PrintRollbackNotice prints a prominent warning box when post-reboot
// validation reverted HostStatus to the previous configuration.
func PrintRollbackNotice(reason string) {
	log := logger.Logger()

	log.Warn("")
	log.Warn("╔════════════════════════════════════════════════════════════════════════════╗")
	log.Warn("║                    ⚠ SERVICING ROLLED BACK                                 ║")
	log.Warn("╚════════════════════════════════════════════════════════════════════════════╝")
	log.Warn("")
	log.Warnf("  %s", reason)
	log.Warn("")
	log.Warn(fmt.Sprintf("════════════════════════════════════════════════════════════════════════════"))
}
