// Package initrd defines the narrow contract the engine consumes for
// initrd regeneration, per spec §1 ("initrd regeneration ... consumed
// via narrow interfaces only"). Actually invoking dracut/mkinitrd is out
// of scope; the default implementation is a logging no-op.
package initrd

import "github.com/open-edge-platform/host-servicer/internal/utils/logger"

// Regenerator rebuilds the host-specific initrd under execRoot.
type Regenerator interface {
	Regenerate(execRoot string, debug bool) error
}

// NoopRegenerator logs the regeneration request and returns nil, since
// actually invoking dracut/mkinitrd is out of this engine's scope.
type NoopRegenerator struct{}

func NewNoopRegenerator() *NoopRegenerator { return &NoopRegenerator{} }

func (r *NoopRegenerator) Regenerate(execRoot string, debug bool) error {
	logger.Logger().Infof("initrd: regeneration requested against %q (debug=%v, no-op)", execRoot, debug)
	return nil
}
