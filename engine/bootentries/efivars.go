package bootentries

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// EfibootmgrVars is the default FirmwareVars implementation, shelling
// out to efibootmgr the same way the rest of the engine shells out to
// mdadm/cryptsetup/veritysetup: through internal/utils/shell so tests
// can substitute a MockExecutor.
type EfibootmgrVars struct{}

func (EfibootmgrVars) SetBootNext(entry uint16) error {
	cmd := fmt.Sprintf("efibootmgr --bootnext %04X", entry)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "bootentries.SetBootNext", "efibootmgr --bootnext failed", err)
	}
	return nil
}

func (EfibootmgrVars) SetBootOrder(entries []uint16) error {
	order := ""
	for i, e := range entries {
		if i > 0 {
			order += ","
		}
		order += fmt.Sprintf("%04X", e)
	}
	cmd := fmt.Sprintf("efibootmgr --bootorder %s", order)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "bootentries.SetBootOrder", "efibootmgr --bootorder failed", err)
	}
	return nil
}

func (EfibootmgrVars) ClearBootNext() error {
	if _, err := shell.ExecCmd("efibootmgr --delete-bootnext", true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "bootentries.ClearBootNext", "efibootmgr --delete-bootnext failed", err)
	}
	return nil
}
