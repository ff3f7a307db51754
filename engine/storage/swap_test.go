package storage

import (
	"testing"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

func TestFormatSwap_RunsOnCleanInstall(t *testing.T) {
	withMockShell(t, []shell.MockCommand{
		{Pattern: `^mkswap /dev/sdb1`, Output: "", Error: nil},
	})

	sw := config.SwapDevice{DeviceID: "swap"}
	if err := FormatSwap(sw, "/dev/sdb1", config.CleanInstall); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFormatSwap_RefusesEveryNonCleanInstallType(t *testing.T) {
	for _, st := range []config.ServicingType{
		config.HotPatch, config.NormalUpdate, config.UpdateAndReboot, config.AbUpdate,
	} {
		st := st
		t.Run(st.String(), func(t *testing.T) {
			withMockShell(t, nil)

			sw := config.SwapDevice{DeviceID: "swap"}
			err := FormatSwap(sw, "/dev/sdb1", st)
			if err == nil {
				t.Fatalf("expected FormatSwap to refuse for servicing type %s", st)
			}
			if enginerr.KindOf(err) != enginerr.Internal {
				t.Fatalf("expected Internal error kind, got %v", enginerr.KindOf(err))
			}
		})
	}
}
