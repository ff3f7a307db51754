package security

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// WriteRecoveryKeyFile writes the LUKS recovery key to path, mode 0600,
// per spec §4.1 ("stamp a recovery-key file (caller-provided, mode 0600,
// non-empty)"). When sealPassphrase is non-empty the file is written as an
// OpenPGP symmetrically-encrypted message instead of plaintext, gated by
// the internal parameter sealRecoveryKeyPassphrase (SPEC_FULL §6).
func WriteRecoveryKeyFile(path string, recoveryKey *Passphrase, sealPassphrase string) error {
	if recoveryKey == nil || recoveryKey.String() == "" {
		return enginerr.New(enginerr.InvalidInput, "security.WriteRecoveryKeyFile", "recovery key is empty")
	}

	var content []byte
	if sealPassphrase != "" {
		sealed, err := sealRecoveryKey(recoveryKey.String(), sealPassphrase)
		if err != nil {
			return enginerr.Wrap(enginerr.Servicing, "security.WriteRecoveryKeyFile", "failed to seal recovery key", err)
		}
		content = sealed
	} else {
		content = []byte(recoveryKey.String())
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "security.WriteRecoveryKeyFile", fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func sealRecoveryKey(recoveryKey, sealPassphrase string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := openpgp.SymmetricallyEncrypt(&buf, []byte(sealPassphrase), nil, &packet.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open symmetric encryption stream: %w", err)
	}
	if _, err := io.WriteString(w, recoveryKey); err != nil {
		return nil, fmt.Errorf("failed to write recovery key plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize symmetric encryption stream: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadSealedRecoveryKey decrypts a recovery-key file previously written by
// WriteRecoveryKeyFile with a non-empty sealPassphrase. Used by rollback
// tooling and manual disaster recovery, not by the servicing hot path.
func ReadSealedRecoveryKey(ciphertext []byte, sealPassphrase string) (string, error) {
	prompted := false
	md, err := openpgp.ReadMessage(bytes.NewReader(ciphertext), nil, func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
		if prompted {
			return nil, fmt.Errorf("incorrect passphrase")
		}
		prompted = true
		return []byte(sealPassphrase), nil
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed recovery key: %w", err)
	}
	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return "", fmt.Errorf("failed to read sealed recovery key body: %w", err)
	}
	return string(plaintext), nil
}
