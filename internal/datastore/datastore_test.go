package datastore

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

func TestNew_LoadsFreshStatus(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(filepath.Join(dir, "status.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := ds.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.ServicingState != config.NotProvisioned {
		t.Fatalf("expected NotProvisioned, got %v", status.ServicingState)
	}
}

func TestWithStatus_PersistsMutation(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(filepath.Join(dir, "status.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ds.WithStatus(func(s *config.HostStatus) error {
		s.ServicingState = config.Staging
		s.InstallIndex = 3
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := ds.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.ServicingState != config.Staging || status.InstallIndex != 3 {
		t.Fatalf("mutation was not persisted: %+v", status)
	}
}

func TestWithStatus_FailureDoesNotPersist(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(filepath.Join(dir, "status.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantErr := errors.New("boom")
	err = ds.WithStatus(func(s *config.HostStatus) error {
		s.ServicingState = config.Staging
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wantErr, got %v", err)
	}

	status, err := ds.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.ServicingState != config.NotProvisioned {
		t.Fatalf("expected state unchanged on failure, got %v", status.ServicingState)
	}
}

func TestWithStatus_SerializesConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(filepath.Join(dir, "status.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ds.WithStatus(func(s *config.HostStatus) error {
				s.InstallIndex++
				return nil
			})
		}()
	}
	wg.Wait()

	status, err := ds.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.InstallIndex != 50 {
		t.Fatalf("expected InstallIndex=50 after 50 increments, got %d", status.InstallIndex)
	}
}
