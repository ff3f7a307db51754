package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/host-servicer/engine/bootentries"
	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/orchestrator"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

var (
	provisionConfigPath string
	provisionImagePath  string
	provisionNoReboot   bool
)

// createProvisionCommand creates the provision subcommand: the first-ever
// install of a host, always forcing config.CleanInstall regardless of
// what the subsystems would otherwise propose.
func createProvisionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision --config HOST_CONFIGURATION_FILE --image OS_IMAGE_FILE",
		Short: "Perform the initial clean install of a host",
		Long: `Provision stages and finalizes a clean install: it partitions the
declared disks, assembles a scratch newroot, deploys boot files from the
given OS image, and applies every subsystem's configuration before
committing the new install as the firmware's trial boot.`,
		RunE: executeProvision,
	}
	cmd.Flags().StringVar(&provisionConfigPath, "config", "", "path to the host configuration file (required)")
	cmd.Flags().StringVar(&provisionImagePath, "image", "", "path to the OS image file (required)")
	cmd.Flags().BoolVar(&provisionNoReboot, "no-transition", false, "stage and finalize without rebooting")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func executeProvision(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	store, err := openStore()
	if err != nil {
		return err
	}

	status, err := store.Load()
	if err != nil {
		return err
	}
	if status.ServicingState != config.NotProvisioned {
		return fmt.Errorf("host is already provisioned (state %s); use \"hostsvcd update\" instead", status.ServicingState)
	}

	spec, err := loadHostConfiguration(provisionConfigPath)
	if err != nil {
		return err
	}
	if err := orchestrator.CheckCleanInstallSafety(spec); err != nil {
		return err
	}
	img, err := openImageHandle(provisionImagePath)
	if err != nil {
		return err
	}

	ec, err := context.Build(status, spec, config.CleanInstall, img)
	if err != nil {
		return err
	}

	o := orchestrator.New(store, buildRegistry())
	o.NoTransition = provisionNoReboot

	log.Infof("provisioning host from %s with image %s", provisionConfigPath, provisionImagePath)
	result, err := o.Stage(ec)
	if err != nil {
		if recordErr := store.RecordError(err); recordErr != nil {
			log.Warnf("failed to record stage error: %v", recordErr)
		}
		return err
	}

	boot, err := bootEntriesFor(spec, result.ExecRoot)
	if err != nil {
		return err
	}

	if err := o.Finalize(ec, result, boot, result.StagedUkiFileName, nil); err != nil {
		return err
	}

	log.Infof("provision staged and finalized; servicing type %s", ec.ServicingType)
	return nil
}

// bootEntriesFor builds a BootEntries bound to the ESP under root (the
// staged newroot's scratch path while Stage's mount is still live), or
// returns nil when the spec declares no ESP partition.
func bootEntriesFor(spec *config.HostConfiguration, root string) (*bootentries.BootEntries, error) {
	espRoot, ok := findEspMountPath(spec, root)
	if !ok {
		return nil, nil
	}
	return bootentries.New(espRoot, bootentries.EfibootmgrVars{}), nil
}
