package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRecoveryKeyFile_Plaintext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recovery.key")
	key, err := NewRandom()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := WriteRecoveryKeyFile(path, key, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != key.String() {
		t.Fatal("expected plaintext recovery key on disk")
	}
}

func TestWriteRecoveryKeyFile_Sealed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recovery.key")
	key, err := NewRandom()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := WriteRecoveryKeyFile(path, key, "seal-passphrase-1234"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) == key.String() {
		t.Fatal("expected sealed recovery key to not equal plaintext")
	}

	plaintext, err := ReadSealedRecoveryKey(raw, "seal-passphrase-1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plaintext != key.String() {
		t.Fatalf("expected unsealed key to match original, got %q want %q", plaintext, key.String())
	}
}

func TestReadSealedRecoveryKey_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recovery.key")
	key, err := NewRandom()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteRecoveryKeyFile(path, key, "correct-horse-battery-staple"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := ReadSealedRecoveryKey(raw, "wrong-passphrase"); err == nil {
		t.Fatal("expected error for wrong seal passphrase")
	}
}

func TestWriteRecoveryKeyFile_RejectsEmptyKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recovery.key")
	if err := WriteRecoveryKeyFile(path, nil, ""); err == nil {
		t.Fatal("expected error for nil recovery key")
	}
}
