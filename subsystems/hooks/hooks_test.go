package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

func withMockShell(t *testing.T, commands []shell.MockCommand) *shell.MockExecutor {
	t.Helper()
	mock := shell.NewMockExecutor(commands)
	original := shell.Default
	shell.Default = mock
	t.Cleanup(func() { shell.Default = original })
	return mock
}

func sampleSpec() *config.HostConfiguration {
	return &config.HostConfiguration{
		Disks: []config.Disk{
			{ID: "os", DevicePath: "/dev/sdb", Partitions: []config.Partition{{ID: "root", Type: "root"}}},
		},
		Filesystems: []config.Filesystem{
			{DeviceID: "root", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/"}},
		},
	}
}

func buildContext(t *testing.T, spec *config.HostConfiguration, st config.ServicingType) *context.EngineContext {
	t.Helper()
	ec, err := context.Build(config.NewHostStatus(), spec, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	return ec
}

func TestValidate_RejectsScriptWithEmptyPath(t *testing.T) {
	s := New()
	spec := sampleSpec()
	spec.Scripts = []config.Script{{Name: "bad", Phase: config.PhasePostConfigure, Path: ""}}
	ec := buildContext(t, spec, config.NormalUpdate)

	if err := s.Validate(ec); err == nil {
		t.Fatal("expected an error for a script with no path")
	}
}

func TestValidate_RejectsUnrecognizedPhase(t *testing.T) {
	s := New()
	spec := sampleSpec()
	spec.Scripts = []config.Script{{Name: "bad", Phase: "sideways", Path: "/opt/a.sh"}}
	ec := buildContext(t, spec, config.NormalUpdate)

	if err := s.Validate(ec); err == nil {
		t.Fatal("expected an error for an unrecognized phase")
	}
}

func TestValidate_RejectsHealthCheckWithBothProbeKinds(t *testing.T) {
	s := New()
	spec := sampleSpec()
	spec.HealthChecks = []config.HealthCheck{
		{Name: "both", SystemdServices: []string{"chronyd"}, ScriptPath: "/opt/check.sh"},
	}
	ec := buildContext(t, spec, config.NormalUpdate)

	if err := s.Validate(ec); err == nil {
		t.Fatal("expected an error for a health check declaring both probe kinds")
	}
}

func TestValidate_RejectsHealthCheckWithNeitherProbeKind(t *testing.T) {
	s := New()
	spec := sampleSpec()
	spec.HealthChecks = []config.HealthCheck{{Name: "neither"}}
	ec := buildContext(t, spec, config.NormalUpdate)

	if err := s.Validate(ec); err == nil {
		t.Fatal("expected an error for a health check declaring no probe kind")
	}
}

func TestProvision_RunsPostProvisionScripts(t *testing.T) {
	mock := withMockShell(t, []shell.MockCommand{
		{Pattern: `/opt/provision\.sh`, Output: "", Error: nil},
	})
	s := New()
	spec := sampleSpec()
	spec.Scripts = []config.Script{
		{Name: "p", Phase: config.PhasePostProvision, Path: "/opt/provision.sh"},
		{Name: "c", Phase: config.PhasePostConfigure, Path: "/opt/configure.sh"},
	}
	ec := buildContext(t, spec, config.CleanInstall)

	if err := s.Provision(ec, "/mnt/newroot"); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected exactly one shell call, got %v", mock.Calls)
	}
}

func TestConfigure_WritesAdditionalFilesAndRunsHealthChecks(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `/opt/configure\.sh`, Output: "", Error: nil},
		{Pattern: `^systemctl status chronyd$`, Output: "", Error: nil},
	})
	s := New()
	spec := sampleSpec()
	spec.Scripts = []config.Script{{Name: "c", Phase: config.PhasePostConfigure, Path: "/opt/configure.sh"}}
	spec.HealthChecks = []config.HealthCheck{{Name: "time-sync", SystemdServices: []string{"chronyd"}}}
	spec.AdditionalFiles = []config.AdditionalFile{
		{Path: "/etc/motd.d/90-notice", Content: "hello"},
	}
	ec := buildContext(t, spec, config.NormalUpdate)

	execRoot := t.TempDir()
	if err := s.Configure(ec, execRoot); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(execRoot, "etc", "motd.d", "90-notice"))
	if err != nil {
		t.Fatalf("expected additional file to be written: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("additional file content = %q, want %q", got, "hello")
	}
}

func TestConfigure_FailsWhenHealthCheckFails(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `^systemctl status chronyd$`, Output: "", Error: os.ErrNotExist},
	})
	s := New()
	spec := sampleSpec()
	spec.HealthChecks = []config.HealthCheck{{Name: "time-sync", SystemdServices: []string{"chronyd"}}}
	ec := buildContext(t, spec, config.NormalUpdate)

	if err := s.Configure(ec, ""); err == nil {
		t.Fatal("expected Configure to fail when a health check fails")
	}
}
