// Package datastore persists HostStatus to disk, serializing access
// through a single mutex-guarded critical section the way spec §5
// requires ("one with_status closure... atomically with respect to other
// threads"). Grounded on the teacher's well-known-directory convention
// (config.WorkDir() in rawmaker.go), generalized into a status file store.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// DefaultStatusPath is the default on-disk location of the persisted
// HostStatus, matching the /var/lib prefix spec §6 uses for the newroot
// scratch-path fallback.
const DefaultStatusPath = "/var/lib/hostsvc/status.yaml"

// DataStore owns the persisted HostStatus. All mutation happens inside
// WithStatus, which is the single critical section spec §5 describes.
type DataStore struct {
	mu   sync.Mutex
	path string
}

// New returns a DataStore backed by the file at path, creating its parent
// directory if necessary. An empty path uses DefaultStatusPath.
func New(path string) (*DataStore, error) {
	if path == "" {
		path = DefaultStatusPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, enginerr.Wrap(enginerr.Internal, "datastore.New", "failed to create status directory", err)
	}
	return &DataStore{path: path}, nil
}

// Load reads the persisted HostStatus, returning a fresh NotProvisioned
// status if no file exists yet.
func (d *DataStore) Load() (*config.HostStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked()
}

func (d *DataStore) loadLocked() (*config.HostStatus, error) {
	raw, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return config.NewHostStatus(), nil
	}
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Internal, "datastore.Load", "failed to read status file", err)
	}

	var status config.HostStatus
	if err := yaml.Unmarshal(raw, &status); err != nil {
		return nil, enginerr.Wrap(enginerr.Internal, "datastore.Load", "failed to parse status file", err)
	}
	return &status, nil
}

func (d *DataStore) saveLocked(status *config.HostStatus) error {
	raw, err := yaml.Marshal(status)
	if err != nil {
		return enginerr.Wrap(enginerr.Internal, "datastore.Save", "failed to marshal status", err)
	}

	tmp := d.path + ".new"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return enginerr.Wrap(enginerr.Internal, "datastore.Save", "failed to write status file", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return enginerr.Wrap(enginerr.Internal, "datastore.Save", "failed to rename status file into place", err)
	}
	return nil
}

// WithStatus is the single mutation critical section: it loads the current
// status, passes it to fn for in-place mutation, and persists the result
// atomically (write-then-rename, matching the teacher's write-`.new`-then-
// rename idiom in imagesign.go). If fn returns an error, no write occurs.
func (d *DataStore) WithStatus(fn func(*config.HostStatus) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	status, err := d.loadLocked()
	if err != nil {
		return err
	}

	if err := fn(status); err != nil {
		return err
	}

	if err := d.saveLocked(status); err != nil {
		return err
	}

	logger.Logger().Debugf("persisted host status: state=%s type=%s index=%d",
		status.ServicingState, status.ServicingType, status.InstallIndex)
	return nil
}

// RecordError stores err (structured if possible) as HostStatus.LastError
// without altering any other field, per spec §7's propagation rule that the
// orchestrator "writes last_error into HostStatus before unmounting".
func (d *DataStore) RecordError(servicingErr error) error {
	return d.WithStatus(func(s *config.HostStatus) error {
		s.LastError = asEngineError(servicingErr)
		return nil
	})
}

func asEngineError(err error) *enginerr.Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*enginerr.Error); ok {
		return e
	}
	return &enginerr.Error{Kind: enginerr.KindOf(err), Op: "orchestrator", Detail: fmt.Sprint(err)}
}
