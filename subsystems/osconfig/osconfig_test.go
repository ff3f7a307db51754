package osconfig

import (
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
		OsConfig: config.OsConfig{
			Hostname: "edge-node-1",
			Users: []config.User{
				{Name: "svc", SSHPublicKeys: []string{"ssh-ed25519 AAAA"}},
			},
			Services: []config.ServiceConfig{
				{Name: "chronyd", State: config.ServiceEnabled},
			},
			KernelCmdline: []string{"console=ttyS0"},
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

func TestPropose_ReturnsNormalUpdateWhenAnyFieldSet(t *testing.T) {
	s := New()
	ec := buildContext(t, sampleSpec(), config.NoActive)
	got, err := s.Propose(ec)
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	if got != config.NormalUpdate {
		t.Fatalf("Propose = %v, want NormalUpdate", got)
	}
}

func TestPropose_NoActiveWhenOsConfigEmpty(t *testing.T) {
	s := New()
	spec := sampleSpec()
	spec.OsConfig = config.OsConfig{}
	ec := buildContext(t, spec, config.NoActive)
	got, err := s.Propose(ec)
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	if got != config.NoActive {
		t.Fatalf("Propose = %v, want NoActive", got)
	}
}

func TestValidate_RejectsEmptyUserName(t *testing.T) {
	s := New()
	spec := sampleSpec()
	spec.OsConfig.Users = append(spec.OsConfig.Users, config.User{Name: ""})
	ec := buildContext(t, spec, config.NormalUpdate)

	if err := s.Validate(ec); err == nil {
		t.Fatal("expected error for a user entry with an empty name")
	}
}

func TestConfigure_AppliesHostnameUsersServicesAndCmdline(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `hostnamectl set-hostname edge-node-1`, Output: "", Error: nil},
		{Pattern: `useradd .*svc`, Output: "", Error: nil},
		{Pattern: `mkdir -p /home/svc/\.ssh`, Output: "", Error: nil},
		{Pattern: `systemctl enable chronyd`, Output: "", Error: nil},
		{Pattern: `grubby --update-kernel=ALL --args="console=ttyS0"`, Output: "", Error: nil},
	})

	s := New()
	ec := buildContext(t, sampleSpec(), config.NormalUpdate)
	if err := s.Configure(ec, ""); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
}

func TestEnsureMachineID_SkipsForInPlaceUpdate(t *testing.T) {
	ec := buildContext(t, sampleSpec(), config.NormalUpdate)
	if err := EnsureMachineID(ec, ""); err != nil {
		t.Fatalf("EnsureMachineID returned error: %v", err)
	}
}

func TestEnsureMachineID_RegeneratesOnCleanInstallWithVerity(t *testing.T) {
	mock := withMockShell(t, []shell.MockCommand{
		{Pattern: `systemd-firstboot --root=/mnt/newroot --setup-machine-id`, Output: "", Error: nil},
	})
	spec := sampleSpec()
	spec.Verity = []config.VerityDevice{{ID: "v", Name: "root", DataID: "root", HashID: "hash"}}
	ec := buildContext(t, spec, config.CleanInstall)

	if err := EnsureMachineID(ec, "/mnt/newroot"); err != nil {
		t.Fatalf("EnsureMachineID returned error: %v", err)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected exactly one shell call, got %v", mock.Calls)
	}
}

func TestEnsureMachineID_CarriesOverOnAbUpdate(t *testing.T) {
	mock := withMockShell(t, []shell.MockCommand{
		{Pattern: `cp -a /etc/machine-id /mnt/newroot/etc/machine-id`, Output: "", Error: nil},
	})
	ec := buildContext(t, sampleSpec(), config.AbUpdate)

	if err := EnsureMachineID(ec, "/mnt/newroot"); err != nil {
		t.Fatalf("EnsureMachineID returned error: %v", err)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected exactly one shell call, got %v", mock.Calls)
	}
}
