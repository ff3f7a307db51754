package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/security"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// RecoveryKeyPath is the on-disk location spec §4.1 requires to be
// non-empty and mode 0600, stamped once per clean install on a UKI image.
var RecoveryKeyPath = "/etc/hostsvc/recovery.key"

// FormatEncryptedVolume generates a passphrase (per cfg.PassphraseSource),
// runs luksFormat against backingPath, writes the recovery-key file when
// ukiActive, and opens the volume to /dev/mapper/<name>. It does not seal
// the key to the TPM; SealToPCRPolicy does that as a separate step. The
// returned Passphrase must be zeroized by the caller once it is no longer
// needed.
func FormatEncryptedVolume(v config.EncryptedVolume, cfg *config.EncryptionConfig, backingPath string, ukiActive bool, sealRecoveryKeyPassphrase string) (mapperPath string, passphrase *security.Passphrase, err error) {
	passphrase, err = security.Resolve(string(cfg.PassphraseSource), cfg.StaticPassphrase)
	if err != nil {
		return "", nil, err
	}

	if _, err := shell.ExecCmdWithInput(
		passphrase.String()+"\n",
		fmt.Sprintf("cryptsetup luksFormat --batch-mode %s", backingPath),
		true, "", nil,
	); err != nil {
		passphrase.Zeroize()
		return "", nil, enginerr.Wrap(enginerr.Servicing, "storage.FormatEncryptedVolume",
			fmt.Sprintf("luksFormat failed for volume %q", v.ID), err)
	}

	if ukiActive {
		if err := WriteRecoveryKeyFile(passphrase, sealRecoveryKeyPassphrase); err != nil {
			passphrase.Zeroize()
			return "", nil, err
		}
	}

	if _, err := shell.ExecCmdWithInput(
		passphrase.String()+"\n",
		fmt.Sprintf("cryptsetup luksOpen %s %s", backingPath, v.Name),
		true, "", nil,
	); err != nil {
		passphrase.Zeroize()
		return "", nil, enginerr.Wrap(enginerr.Servicing, "storage.FormatEncryptedVolume",
			fmt.Sprintf("luksOpen failed for volume %q", v.ID), err)
	}

	return fmt.Sprintf("/dev/mapper/%s", v.Name), passphrase, nil
}

// WriteRecoveryKeyFile stamps the recovery-key file spec §4.1 requires for
// UKI images, optionally sealed with OpenPGP symmetric encryption when
// sealPassphrase is non-empty (internal parameter sealRecoveryKeyPassphrase).
func WriteRecoveryKeyFile(passphrase *security.Passphrase, sealPassphrase string) error {
	return security.WriteRecoveryKeyFile(RecoveryKeyPath, passphrase, sealPassphrase)
}

// RenderCrypttab produces /etc/crypttab for the given encrypted volumes and
// swap devices, per spec §6's exact line formats. pathFor resolves a
// HostConfiguration device id to its actual block-device path the same way
// RenderFstab's pathFor does — a /etc/crypttab device field holding a
// config id instead of a path is meaningless to the boot-time LUKS unlock.
func RenderCrypttab(cfg *config.HostConfiguration, pathFor PathLookup, mapperNameForDevice func(deviceID string) (name string, isSwap bool, ok bool)) (string, error) {
	var b strings.Builder
	if cfg.Encryption != nil {
		for _, v := range cfg.Encryption.Volumes {
			backingPath, err := pathFor(v.BackingID)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s\t%s\tnone\tluks,tpm2-device=auto\n", v.Name, backingPath)
		}
	}
	for _, sw := range cfg.Swap {
		name, isSwap, ok := mapperNameForDevice(sw.DeviceID)
		if !ok || !isSwap {
			continue
		}
		swapPath, err := pathFor(sw.DeviceID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s\t%s\t/dev/urandom\tluks,swap,cipher=aes-xts-plain64,size=256\n", name, swapPath)
	}
	return b.String(), nil
}

// pcrSetString renders a PCR set as the comma-separated list tpm2-tools
// expects, e.g. "0,7,11".
func pcrSetString(pcrs []int) string {
	strs := make([]string, len(pcrs))
	for i, p := range pcrs {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ",")
}

// SealToPCRPolicy seals volumeName's LUKS key to the TPM PCR set recorded
// in cfg via systemd-cryptenroll, for non-UKI images per spec §4.1 ("for
// non-UKI, seal to the configured PCR set").
func SealToPCRPolicy(volumeName string, cfg *config.EncryptionConfig) error {
	if len(cfg.PcrSet) == 0 {
		return nil
	}
	cmd := fmt.Sprintf("systemd-cryptenroll --tpm2-device=auto --tpm2-pcrs=%s /dev/mapper/%s", pcrSetString(cfg.PcrSet), volumeName)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.SealToPCRPolicy",
			fmt.Sprintf("failed to seal volume %q to PCR policy", volumeName), err)
	}
	return nil
}
