// Package selinux defines the narrow contract the engine consumes for
// SELinux relabeling, per spec §1 ("SELinux relabeling ... consumed via
// narrow interfaces only"). Actually invoking setfiles is out of scope;
// the default implementation is a logging no-op.
package selinux

import "github.com/open-edge-platform/host-servicer/internal/utils/logger"

// Relabeler relabels paths using the named SELinux file-contexts type.
type Relabeler interface {
	Relabel(selinuxType string, paths []string) error
}

// NoopRelabeler logs the relabel request and returns nil, since actually
// running setfiles is out of this engine's scope.
type NoopRelabeler struct{}

func NewNoopRelabeler() *NoopRelabeler { return &NoopRelabeler{} }

func (r *NoopRelabeler) Relabel(selinuxType string, paths []string) error {
	logger.Logger().Infof("selinux: relabel requested for type %q on %v (no-op)", selinuxType, paths)
	return nil
}
