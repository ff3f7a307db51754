package boot

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	enginectx "github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

type fakeImage struct {
	payload []byte
}

func newFakeImage(t *testing.T) *fakeImage {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("fake esp payload")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &fakeImage{payload: buf.Bytes()}
}

func (f *fakeImage) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

func (f *fakeImage) Digest() (string, error) { return "", nil }

func (f *fakeImage) Identity() string { return "fake" }

func withMockShell(t *testing.T, commands []shell.MockCommand) {
	t.Helper()
	original := shell.Default
	shell.Default = shell.NewMockExecutor(commands)
	t.Cleanup(func() { shell.Default = original })
}

func espSpec() *config.HostConfiguration {
	return &config.HostConfiguration{
		Disks: []config.Disk{
			{
				ID:         "os",
				DevicePath: "/dev/sdb",
				Partitions: []config.Partition{
					{ID: "esp", Type: "esp"},
					{ID: "root", Type: "root"},
				},
			},
		},
		Filesystems: []config.Filesystem{
			{DeviceID: "esp", FsType: "vfat", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/boot/efi", Options: "umask=0077"}},
			{DeviceID: "root", FsType: "ext4", Source: config.SourceNew, Mount: &config.MountPoint{Path: "/"}},
		},
	}
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func buildContext(t *testing.T, spec *config.HostConfiguration, status *config.HostStatus, st config.ServicingType, img *fakeImage) *enginectx.EngineContext {
	t.Helper()
	if status == nil {
		status = config.NewHostStatus()
	}
	var ec *enginectx.EngineContext
	var err error
	if img != nil {
		ec, err = enginectx.Build(status, spec, st, img)
	} else {
		ec, err = enginectx.Build(status, spec, st, nil)
	}
	if err != nil {
		t.Fatal(err)
	}
	return ec
}

func TestPropose_AlwaysNoActive(t *testing.T) {
	s := New()
	ec := buildContext(t, espSpec(), nil, config.NoActive, nil)
	got, err := s.Propose(ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != config.NoActive {
		t.Fatalf("Propose = %v, want NoActive", got)
	}
}

func TestValidate_RejectsUnknownFallbackMode(t *testing.T) {
	s := New()
	spec := espSpec()
	spec.Uki = config.UkiConfig{Enabled: true, FallbackMode: "sideways"}
	ec := buildContext(t, spec, nil, config.NoActive, nil)

	if err := s.Validate(ec); err == nil {
		t.Fatal("expected an error for an unrecognized fallback mode")
	}
}

func TestValidate_AcceptsKnownFallbackModes(t *testing.T) {
	s := New()
	spec := espSpec()
	spec.Uki = config.UkiConfig{Enabled: true, FallbackMode: config.FallbackRollforward}
	ec := buildContext(t, spec, nil, config.NoActive, nil)

	if err := s.Validate(ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProvision_NoopWithoutNewroot(t *testing.T) {
	s := New()
	ec := buildContext(t, espSpec(), nil, config.CleanInstall, newFakeImage(t))

	if err := s.Provision(ec, ""); err != nil {
		t.Fatalf("unexpected error for in-place provision: %v", err)
	}
}

func TestProvision_StagesNonUkiBootFilesForCleanInstall(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `^mount -t vfat`, Output: "", Error: nil},
		{Pattern: `^umount`, Output: "", Error: nil},
	})

	newRoot := t.TempDir()
	mountPoint := filepath.Join(newRoot, "var", "tmp", "esp-extract", "mnt")
	writeFixture(t, filepath.Join(mountPoint, "EFI", "BOOT", "grub.cfg"), "menu")
	writeFixture(t, filepath.Join(mountPoint, "EFI", "BOOT", "grubx64-noprefix.efi"), "grub")
	writeFixture(t, filepath.Join(mountPoint, "EFI", "BOOT", "bootx64.efi"), "shim")

	ec := buildContext(t, espSpec(), nil, config.CleanInstall, newFakeImage(t))

	s := New()
	if err := s.Provision(ec, newRoot); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	destDir := filepath.Join(newRoot, "boot", "efi", "EFI", "AZLA0")
	if _, err := os.Stat(filepath.Join(destDir, "grub.cfg")); err != nil {
		t.Fatalf("expected grub.cfg staged: %v", err)
	}
	if ec.InstallIndex != 0 {
		t.Fatalf("InstallIndex = %d, want 0", ec.InstallIndex)
	}
}

func TestProvision_StagesUkiAndCommitsBootOrderRename(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `^mount -t vfat`, Output: "", Error: nil},
		{Pattern: `^umount`, Output: "", Error: nil},
	})

	newRoot := t.TempDir()
	mountPoint := filepath.Join(newRoot, "var", "tmp", "esp-extract", "mnt")
	writeFixture(t, filepath.Join(mountPoint, "EFI", "Linux", "vmlinuz.efi"), "uki")

	spec := espSpec()
	spec.Uki = config.UkiConfig{Enabled: true, FallbackMode: config.FallbackRollforward}
	ec := buildContext(t, spec, nil, config.CleanInstall, newFakeImage(t))

	s := New()
	if err := s.Provision(ec, newRoot); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	espRoot := filepath.Join(newRoot, "boot", "efi")

	// The rename is committed inside Provision itself, not Configure: a
	// UKI+verity build skips every subsystem's configure phase, and the
	// firmware boot-order commit must survive that skip.
	if ec.StagedUkiFileName != "vmlinuz-100-azla0.efi" {
		t.Fatalf("StagedUkiFileName = %q, want vmlinuz-100-azla0.efi", ec.StagedUkiFileName)
	}
	committed := filepath.Join(espRoot, "EFI", "Linux", ec.StagedUkiFileName)
	if _, err := os.Stat(committed); err != nil {
		t.Fatalf("expected committed UKI file: %v", err)
	}

	// Configure is a no-op: calling it again must not error or re-rename.
	if err := s.Configure(ec, newRoot); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	if ec.StagedUkiFileName != "vmlinuz-100-azla0.efi" {
		t.Fatalf("Configure must not change StagedUkiFileName, got %q", ec.StagedUkiFileName)
	}
}
