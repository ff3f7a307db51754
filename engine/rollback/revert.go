package rollback

import (
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/datastore"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// RevertOnValidationFailure implements spec §4.4's "on mismatch, revert
// HostStatus" rule: a clean install clears spec and returns to
// NotProvisioned; an A/B update restores spec_old and returns to
// Provisioned (the state it was in before this cycle started), per the
// state machine in spec §4.5 and the worked example in spec §8 scenario
// 6 ("spec <- spec_old; spec_old <- default; servicing_type=NoActive;
// servicing_state=Provisioned").
func RevertOnValidationFailure(store *datastore.DataStore, wasCleanInstall bool) error {
	return store.WithStatus(func(status *config.HostStatus) error {
		if wasCleanInstall {
			status.Spec = nil
			status.ServicingState = config.NotProvisioned
			status.ServicingType = config.NoActive
			return nil
		}

		status.Spec = status.SpecOld
		status.SpecOld = nil
		status.ServicingType = config.NoActive
		status.ServicingState = config.Provisioned
		return nil
	})
}

// ValidateAndRevert runs Validate and, on mismatch, reverts HostStatus
// before returning the rollback error so the caller can surface it
// without a second round trip through the datastore.
func ValidateAndRevert(store *datastore.DataStore, cfg *config.HostConfiguration, status *config.HostStatus, wasCleanInstall bool) error {
	if err := Validate(cfg, status); err != nil {
		if enginerr.KindOf(err) != enginerr.Servicing {
			return err
		}
		if revertErr := RevertOnValidationFailure(store, wasCleanInstall); revertErr != nil {
			return revertErr
		}
		return err
	}

	return store.WithStatus(func(s *config.HostStatus) error {
		s.ServicingState = config.Provisioned
		if s.AbActiveVolume == config.AbA {
			s.AbActiveVolume = config.AbB
		} else if s.AbActiveVolume == config.AbB {
			s.AbActiveVolume = config.AbA
		}
		s.SpecOld = nil
		return nil
	})
}
