package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/orchestrator"
	"github.com/open-edge-platform/host-servicer/engine/rollback"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

var (
	updateConfigPath string
	updateImagePath  string
	updateNoReboot   bool
)

// createUpdateCommand creates the update subcommand: servicing an already-
// provisioned host, letting the registry's Propose calls pick the least
// invasive servicing type the new configuration requires.
func createUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update --config HOST_CONFIGURATION_FILE [--image OS_IMAGE_FILE]",
		Short: "Service an already-provisioned host",
		Long: `Update compares the given configuration against the host's current
spec, lets each subsystem propose the servicing type its changes require,
and stages and finalizes the most invasive one. --image is required only
when the update carries a new OS image (an A/B update); configuration-only
changes (hostname, users, services, hooks) omit it.`,
		RunE: executeUpdate,
	}
	cmd.Flags().StringVar(&updateConfigPath, "config", "", "path to the new host configuration file (required)")
	cmd.Flags().StringVar(&updateImagePath, "image", "", "path to the new OS image file, required for an A/B update")
	cmd.Flags().BoolVar(&updateNoReboot, "no-transition", false, "stage and finalize without rebooting")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func executeUpdate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	store, err := openStore()
	if err != nil {
		return err
	}

	status, err := store.Load()
	if err != nil {
		return err
	}
	if status.ServicingState == config.NotProvisioned {
		return fmt.Errorf("host is not yet provisioned; use \"hostsvcd provision\" first")
	}

	if status.AbActiveVolume != config.AbNone && status.Spec != nil {
		liveActive, err := rollback.DeriveLiveActiveVolume(status.Spec, status)
		if err != nil {
			return err
		}
		if err := orchestrator.CheckAbActiveVolumeGuard(status.AbActiveVolume, liveActive); err != nil {
			return err
		}
	}

	newSpec, err := loadHostConfiguration(updateConfigPath)
	if err != nil {
		return err
	}
	if status.Spec != nil {
		if err := config.ValidateUpdate(status.Spec, newSpec); err != nil {
			return err
		}
	}

	img, err := openImageHandle(updateImagePath)
	if err != nil {
		return err
	}

	probeEc, err := context.Build(status, newSpec, config.NoActive, img)
	if err != nil {
		return err
	}

	reg := buildRegistry()
	o := orchestrator.New(store, reg)
	o.NoTransition = updateNoReboot

	servicingType, err := o.SelectServicingType(probeEc)
	if err != nil {
		return err
	}
	if servicingType == config.NoActive {
		log.Infof("no subsystem proposed a servicing action; nothing to do")
		return nil
	}

	ec, err := context.Build(status, newSpec, servicingType, img)
	if err != nil {
		return err
	}

	log.Infof("servicing host from %s with servicing type %s", updateConfigPath, servicingType)
	result, err := o.Stage(ec)
	if err != nil {
		if recordErr := store.RecordError(err); recordErr != nil {
			log.Warnf("failed to record stage error: %v", recordErr)
		}
		return err
	}

	boot, err := bootEntriesFor(newSpec, result.ExecRoot)
	if err != nil {
		return err
	}

	if err := o.Finalize(ec, result, boot, result.StagedUkiFileName, nil); err != nil {
		return err
	}

	log.Infof("update staged and finalized; servicing type %s", servicingType)
	return nil
}
