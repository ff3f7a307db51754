// Package bootentries turns the UKI files staged under the ESP's
// EFI/Linux directory into firmware boot-order state: which entry the
// firmware should try next (BootNext), and the persistent trial/final
// order (BootOrder). Grounded on canonical-snapd's bootloader/lkenv
// package (ordered, slot-indexed boot-environment bookkeeping) and
// canonical-ubuntu-image's per-bootloader boot-file staging helper,
// generalized from "one active slot" to "an ordered list of UKI
// entries with a trial head."
package bootentries

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/engine/esp"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// FirmwareVars is the boundary to UEFI variable storage. Spec §1 lists
// efivar/efibootmgr as out-of-scope external utilities; no library in
// the example pack wraps them, so this is a narrow interface whose
// default implementation (EfibootmgrVars) shells out to efibootmgr.
type FirmwareVars interface {
	// SetBootNext points the firmware at entry for exactly the next boot.
	SetBootNext(entry uint16) error
	// SetBootOrder persists the permanent boot order.
	SetBootOrder(entries []uint16) error
	// ClearBootNext removes a previously set BootNext, e.g. after a
	// successful trial boot has been promoted to BootOrder.
	ClearBootNext() error
}

// BootEntries enumerates the UKI files staged on the ESP and decides
// which firmware variables to update for a given boot phase.
type BootEntries struct {
	espRoot string
	fw      FirmwareVars
}

// New builds a BootEntries bound to the ESP at espRoot and the given
// firmware variable store.
func New(espRoot string, fw FirmwareVars) *BootEntries {
	return &BootEntries{espRoot: espRoot, fw: fw}
}

// Entries returns the currently staged UKI entries, ordered oldest to
// newest by their numeric order-index prefix.
func (b *BootEntries) Entries() ([]esp.UkiEntry, error) {
	return esp.EnumerateUkiEntries(b.espRoot)
}

// CommitTrial stages the just-committed UKI filename as a one-shot
// BootNext, used for the first boot of a newly finalized install before
// the post-reboot validator has confirmed it.
func (b *BootEntries) CommitTrial(committedFileName string) error {
	idx, err := b.firmwareIndexFor(committedFileName)
	if err != nil {
		return err
	}
	if err := b.fw.SetBootNext(idx); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "bootentries.CommitTrial", "failed to set BootNext", err)
	}
	return nil
}

// PromoteToBootOrder is called once the post-reboot validator confirms
// the new install booted successfully: it clears BootNext and places
// the confirmed entry at the head of the permanent BootOrder, keeping
// remaining entries (most-recent-first) behind it.
func (b *BootEntries) PromoteToBootOrder(confirmedFileName string) error {
	entries, err := b.Entries()
	if err != nil {
		return err
	}

	confirmedIdx, err := b.firmwareIndexFor(confirmedFileName)
	if err != nil {
		return err
	}

	order := []uint16{confirmedIdx}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].FileName == confirmedFileName {
			continue
		}
		idx, err := b.firmwareIndexFor(entries[i].FileName)
		if err != nil {
			return err
		}
		order = append(order, idx)
	}

	if err := b.fw.SetBootOrder(order); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "bootentries.PromoteToBootOrder", "failed to set BootOrder", err)
	}
	if err := b.fw.ClearBootNext(); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "bootentries.PromoteToBootOrder", "failed to clear BootNext", err)
	}
	return nil
}

// firmwareIndexFor maps a staged UKI filename's order-index to the
// 16-bit firmware boot-entry number the variable-store interface
// expects. The engine mirrors the ESP's own ordering into the
// firmware's numbering rather than maintaining a second table.
func (b *BootEntries) firmwareIndexFor(fileName string) (uint16, error) {
	entries, err := b.Entries()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.FileName == fileName {
			if e.Order > 0xFFFF {
				return 0, enginerr.New(enginerr.Internal, "bootentries.firmwareIndexFor",
					fmt.Sprintf("order index %d exceeds firmware boot-entry range", e.Order))
			}
			return uint16(e.Order), nil
		}
	}
	return 0, enginerr.New(enginerr.Internal, "bootentries.firmwareIndexFor",
		fmt.Sprintf("no staged UKI entry named %q", fileName))
}
