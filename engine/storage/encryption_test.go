package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

func TestFormatEncryptedVolume_RandomPassphrase(t *testing.T) {
	dir := t.TempDir()
	origPath := RecoveryKeyPath
	RecoveryKeyPath = filepath.Join(dir, "recovery.key")
	t.Cleanup(func() { RecoveryKeyPath = origPath })

	withMockShell(t, []shell.MockCommand{
		{Pattern: `cryptsetup luksFormat`, Output: "", Error: nil},
		{Pattern: `cryptsetup luksOpen`, Output: "", Error: nil},
	})

	v := config.EncryptedVolume{ID: "root-enc", Name: "root", BackingID: "root"}
	cfg := &config.EncryptionConfig{PassphraseSource: config.PassphraseRandom}

	mapperPath, passphrase, err := FormatEncryptedVolume(v, cfg, "/dev/disk/by-partuuid/u1", true, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer passphrase.Zeroize()

	if mapperPath != "/dev/mapper/root" {
		t.Fatalf("expected /dev/mapper/root, got %s", mapperPath)
	}
	if _, err := os.Stat(RecoveryKeyPath); err != nil {
		t.Fatalf("expected recovery key file to be written: %v", err)
	}
}

func TestFormatEncryptedVolume_LuksFormatFailurePropagates(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `cryptsetup luksFormat`, Output: "", Error: os.ErrPermission},
	})

	v := config.EncryptedVolume{ID: "root-enc", Name: "root", BackingID: "root"}
	cfg := &config.EncryptionConfig{PassphraseSource: config.PassphraseRandom}

	_, _, err := FormatEncryptedVolume(v, cfg, "/dev/disk/by-partuuid/u1", false, "")
	if err == nil {
		t.Fatal("expected luksFormat failure to propagate")
	}
}

func TestRenderCrypttab_EncryptedVolumeAndSwap(t *testing.T) {
	cfg := &config.HostConfiguration{
		Encryption: &config.EncryptionConfig{
			Volumes: []config.EncryptedVolume{{ID: "root-enc", Name: "root", BackingID: "root"}},
		},
		Swap: []config.SwapDevice{{DeviceID: "swap-enc"}},
	}
	lookup := func(deviceID string) (string, bool, bool) {
		if deviceID == "swap-enc" {
			return "swap", true, true
		}
		return "", false, false
	}
	pathFor := func(deviceID string) (string, error) {
		switch deviceID {
		case "root":
			return "/dev/disk/by-partuuid/root-uuid", nil
		case "swap-enc":
			return "/dev/disk/by-partuuid/swap-uuid", nil
		}
		return "", fmt.Errorf("unexpected device id %q", deviceID)
	}

	out, err := RenderCrypttab(cfg, pathFor, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "root\t/dev/disk/by-partuuid/root-uuid\tnone\tluks,tpm2-device=auto") {
		t.Fatalf("expected encrypted volume line with a resolved path, got %q", out)
	}
	if !strings.Contains(out, "swap\t/dev/disk/by-partuuid/swap-uuid\t/dev/urandom\tluks,swap,cipher=aes-xts-plain64,size=256") {
		t.Fatalf("expected swap line with a resolved path, got %q", out)
	}
}

func TestRenderCrypttab_PropagatesPathLookupError(t *testing.T) {
	cfg := &config.HostConfiguration{
		Encryption: &config.EncryptionConfig{
			Volumes: []config.EncryptedVolume{{ID: "root-enc", Name: "root", BackingID: "root"}},
		},
	}
	lookup := func(deviceID string) (string, bool, bool) { return "", false, false }
	pathFor := func(deviceID string) (string, error) { return "", fmt.Errorf("unresolved id %q", deviceID) }

	if _, err := RenderCrypttab(cfg, pathFor, lookup); err == nil {
		t.Fatal("expected RenderCrypttab to propagate a path-resolution error")
	}
}
