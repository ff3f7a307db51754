package bootentries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/host-servicer/engine/esp"
)

type fakeFirmwareVars struct {
	bootNext    *uint16
	bootOrder   []uint16
	clearedNext bool
}

func (f *fakeFirmwareVars) SetBootNext(entry uint16) error {
	f.bootNext = &entry
	return nil
}

func (f *fakeFirmwareVars) SetBootOrder(entries []uint16) error {
	f.bootOrder = entries
	return nil
}

func (f *fakeFirmwareVars) ClearBootNext() error {
	f.clearedNext = true
	f.bootNext = nil
	return nil
}

func writeUkiEntries(t *testing.T, espRoot string, names ...string) {
	t.Helper()
	dir := esp.UkiDir(espRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCommitTrial_SetsBootNextToMatchingOrder(t *testing.T) {
	espRoot := t.TempDir()
	writeUkiEntries(t, espRoot, "vmlinuz-100-azla0.efi", "vmlinuz-101-azlb0.efi")
	fw := &fakeFirmwareVars{}
	b := New(espRoot, fw)

	if err := b.CommitTrial("vmlinuz-101-azlb0.efi"); err != nil {
		t.Fatalf("CommitTrial returned error: %v", err)
	}
	if fw.bootNext == nil || *fw.bootNext != 101 {
		t.Fatalf("BootNext = %v, want 101", fw.bootNext)
	}
}

func TestCommitTrial_UnknownEntryFails(t *testing.T) {
	espRoot := t.TempDir()
	writeUkiEntries(t, espRoot, "vmlinuz-100-azla0.efi")
	fw := &fakeFirmwareVars{}
	b := New(espRoot, fw)

	if err := b.CommitTrial("vmlinuz-999-azlb0.efi"); err == nil {
		t.Fatal("expected error for an entry absent from the ESP")
	}
}

func TestPromoteToBootOrder_PlacesConfirmedEntryFirst(t *testing.T) {
	espRoot := t.TempDir()
	writeUkiEntries(t, espRoot, "vmlinuz-100-azla0.efi", "vmlinuz-101-azlb0.efi", "vmlinuz-102-azla0.efi")
	fw := &fakeFirmwareVars{}
	b := New(espRoot, fw)

	if err := b.PromoteToBootOrder("vmlinuz-102-azla0.efi"); err != nil {
		t.Fatalf("PromoteToBootOrder returned error: %v", err)
	}
	want := []uint16{102, 101, 100}
	if len(fw.bootOrder) != len(want) {
		t.Fatalf("BootOrder = %v, want %v", fw.bootOrder, want)
	}
	for i := range want {
		if fw.bootOrder[i] != want[i] {
			t.Fatalf("BootOrder = %v, want %v", fw.bootOrder, want)
		}
	}
	if !fw.clearedNext {
		t.Fatal("expected BootNext to be cleared after promotion")
	}
}

func TestEntries_ReflectsEspState(t *testing.T) {
	espRoot := t.TempDir()
	writeUkiEntries(t, espRoot, "vmlinuz-100-azla0.efi")
	b := New(espRoot, &fakeFirmwareVars{})

	entries, err := b.Entries()
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Order != 100 {
		t.Fatalf("Entries = %+v, want one entry with order 100", entries)
	}
}
