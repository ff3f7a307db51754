package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

func withFixtureCmdline(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cmdline")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	origCmdline := cmdlinePath
	cmdlinePath = path
	t.Cleanup(func() { cmdlinePath = origCmdline })
}

func withNoOverrideFile(t *testing.T) {
	t.Helper()
	origOverride := cleanInstallOverrideFile
	cleanInstallOverrideFile = filepath.Join(t.TempDir(), "no-such-override-file")
	t.Cleanup(func() { cleanInstallOverrideFile = origOverride })
}

func TestCheckCleanInstallSafety_RefusesNonLiveNonAdopting(t *testing.T) {
	withNoOverrideFile(t)
	withFixtureCmdline(t, "BOOT_IMAGE=/vmlinuz root=/dev/sda2 ro quiet")

	cfg := &config.HostConfiguration{Disks: []config.Disk{{ID: "os"}}}
	if err := CheckCleanInstallSafety(cfg); err == nil {
		t.Fatal("expected refusal when not booted from a live medium and nothing is adopted")
	}
}

func TestCheckCleanInstallSafety_AllowsLiveMedium(t *testing.T) {
	withNoOverrideFile(t)
	withFixtureCmdline(t, "BOOT_IMAGE=/vmlinuz root=/dev/ram0 ro quiet")

	cfg := &config.HostConfiguration{Disks: []config.Disk{{ID: "os"}}}
	if err := CheckCleanInstallSafety(cfg); err != nil {
		t.Fatalf("expected live-medium boot to be allowed, got %v", err)
	}
}

func TestCheckCleanInstallSafety_AllowsAdoptedPartitions(t *testing.T) {
	withNoOverrideFile(t)
	withFixtureCmdline(t, "BOOT_IMAGE=/vmlinuz root=/dev/sda2 ro quiet")

	cfg := &config.HostConfiguration{
		Disks: []config.Disk{{
			ID:                "os",
			AdoptedPartitions: []config.AdoptedPartition{{ID: "data", Label: "DATA"}},
		}},
	}
	if err := CheckCleanInstallSafety(cfg); err != nil {
		t.Fatalf("expected adopted partitions to be allowed, got %v", err)
	}
}

func TestCheckCleanInstallSafety_OverrideFileBypassesCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow-clean-install")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	origOverride := cleanInstallOverrideFile
	cleanInstallOverrideFile = path
	t.Cleanup(func() { cleanInstallOverrideFile = origOverride })

	cfg := &config.HostConfiguration{Disks: []config.Disk{{ID: "os"}}}
	if err := CheckCleanInstallSafety(cfg); err != nil {
		t.Fatalf("expected override file to bypass the check, got %v", err)
	}
}

func TestCheckAbActiveVolumeGuard_AgreementPasses(t *testing.T) {
	if err := CheckAbActiveVolumeGuard(config.AbA, config.AbA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckAbActiveVolumeGuard_DisagreementFails(t *testing.T) {
	if err := CheckAbActiveVolumeGuard(config.AbA, config.AbB); err == nil {
		t.Fatal("expected disagreement between persisted and live active volume to fail")
	}
}

func TestCheckAbActiveVolumeGuard_NoneSkipsCheck(t *testing.T) {
	if err := CheckAbActiveVolumeGuard(config.AbNone, config.AbB); err != nil {
		t.Fatalf("unexpected error when no A/B side has been persisted yet: %v", err)
	}
}
