package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/host-servicer/engine/bootentries"
	"github.com/open-edge-platform/host-servicer/engine/rollback"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// createValidateBootCommand creates the validate-boot subcommand: run once
// per boot, early in the already-booted system's startup, to confirm the
// kernel actually came up on the device the just-finalized HostStatus
// expected. On mismatch it reverts HostStatus per spec §4.4/§4.5; on a
// match it promotes the trial boot entry into the permanent BootOrder.
func createValidateBootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-boot",
		Short: "Validate the just-booted root device against HostStatus and revert on mismatch",
		Long: `validate-boot compares the root device the kernel actually mounted
against the device the most recent Stage/Finalize cycle expected. A match
promotes the trial firmware boot entry into the permanent BootOrder; a
mismatch reverts HostStatus to the prior spec (or to NotProvisioned for a
failed clean install) and reports the rollback as an error.`,
		RunE: executeValidateBoot,
	}
	return cmd
}

func executeValidateBoot(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	store, err := openStore()
	if err != nil {
		return err
	}
	status, err := store.Load()
	if err != nil {
		return err
	}
	if status.ServicingState != config.Finalized {
		return fmt.Errorf("host status is %s, not finalized; nothing to validate", status.ServicingState)
	}
	if status.Spec == nil {
		return fmt.Errorf("host status has no recorded spec to validate against")
	}

	wasCleanInstall := status.ServicingType == config.CleanInstall

	if err := rollback.ValidateAndRevert(store, status.Spec, status, wasCleanInstall); err != nil {
		log.Warnf("boot validation failed, host status reverted: %v", err)
		return err
	}

	log.Infof("boot validation succeeded; root device matches the expected servicing target")

	if status.StagedUkiFileName == "" {
		return nil
	}
	espRoot, ok := findEspMountPath(status.Spec, "")
	if !ok {
		log.Infof("no ESP partition declared; skipping firmware boot-order promotion")
		return nil
	}
	boot := bootentries.New(espRoot, bootentries.EfibootmgrVars{})
	if err := boot.PromoteToBootOrder(status.StagedUkiFileName); err != nil {
		return err
	}
	log.Infof("promoted %s to the permanent firmware boot order", status.StagedUkiFileName)
	return nil
}
