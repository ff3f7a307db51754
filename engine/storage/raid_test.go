package storage

import (
	"strings"
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

func withMockShell(t *testing.T, commands []shell.MockCommand) {
	t.Helper()
	original := shell.Default
	shell.Default = shell.NewMockExecutor(commands)
	t.Cleanup(func() { shell.Default = original })
}

func TestAssembleRaidArray_BuildsMdadmCommand(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `mdadm --create /dev/md/root --run --level=1 --raid-devices=2 /dev/sdb1 /dev/sdc1`, Output: "", Error: nil},
	})

	r := config.RaidArray{ID: "root", Level: config.Raid1, Members: []string{"p1", "p2"}}
	path, err := AssembleRaidArray(r, []string{"/dev/sdb1", "/dev/sdc1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/dev/md/root" {
		t.Fatalf("expected /dev/md/root, got %s", path)
	}
}

func TestAssembleRaidArray_MemberCountMismatch(t *testing.T) {
	r := config.RaidArray{ID: "root", Level: config.Raid1, Members: []string{"p1", "p2"}}
	if _, err := AssembleRaidArray(r, []string{"/dev/sdb1"}); err == nil {
		t.Fatal("expected error for member count mismatch")
	}
}

func TestRenderMdadmConf_NoArraysReturnsEmpty(t *testing.T) {
	out, err := RenderMdadmConf(&config.HostConfiguration{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestRenderMdadmConf_WithArrays(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `mdadm --examine --scan`, Output: "ARRAY /dev/md/root metadata=1.2 name=root UUID=abc", Error: nil},
	})

	cfg := &config.HostConfiguration{RaidArrays: []config.RaidArray{{ID: "root"}}}
	out, err := RenderMdadmConf(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ARRAY /dev/md/root") {
		t.Fatalf("expected rendered conf to contain array line, got %q", out)
	}
}
