package esp

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// ExtractResult is the outcome of decompressing and verifying a staged ESP
// image, per spec §4.3's non-UKI stage.
type ExtractResult struct {
	ScratchFilePath string
	Digest          string
}

// DecompressAndVerify streams src (zstd-compressed) into
// <newrootPath>/var/tmp/esp-extract/esp.img, hashing as it streams (SHA-384)
// and comparing the resulting digest against expectedDigest.
func DecompressAndVerify(src io.Reader, newrootPath, expectedDigest string, sizeHint int64) (*ExtractResult, error) {
	scratchDir := filepath.Join(newrootPath, "var", "tmp", "esp-extract")
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "esp.DecompressAndVerify", "failed to create scratch extract directory", err)
	}
	scratchFile := filepath.Join(scratchDir, "esp.img")

	out, err := os.Create(scratchFile)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "esp.DecompressAndVerify", "failed to create scratch esp image", err)
	}
	defer out.Close()

	zr, err := zstd.NewReader(src)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "esp.DecompressAndVerify", "failed to open zstd stream", err)
	}
	defer zr.Close()

	hasher := sha512.New384()
	bar := progressbar.DefaultBytes(sizeHint, "decompressing esp image")
	if _, err := io.Copy(io.MultiWriter(out, hasher, bar), zr); err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "esp.DecompressAndVerify", "failed to decompress esp image", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	if expectedDigest != "" && digest != expectedDigest {
		return nil, enginerr.New(enginerr.Servicing, "esp.DecompressAndVerify",
			fmt.Sprintf("esp image digest mismatch: got %s, want %s", digest, expectedDigest))
	}

	return &ExtractResult{ScratchFilePath: scratchFile, Digest: digest}, nil
}

// MountScratchVfat loop-mounts the decompressed scratch image as VFAT at
// mountPoint.
func MountScratchVfat(scratchFilePath, mountPoint string) error {
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.MountScratchVfat", "failed to create mount point", err)
	}
	cmd := fmt.Sprintf("mount -t vfat -o loop %s %s", scratchFilePath, mountPoint)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.MountScratchVfat", "failed to loop-mount scratch esp image", err)
	}
	return nil
}

// UnmountScratchVfat reverses MountScratchVfat.
func UnmountScratchVfat(mountPoint string) error {
	if _, err := shell.ExecCmd(fmt.Sprintf("umount %s", mountPoint), true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.UnmountScratchVfat", "failed to unmount scratch esp image", err)
	}
	return nil
}

// StageNonUkiBootFiles copies the three required boot files from the
// mounted scratch image into the per-install directory, clearing it first,
// per spec §4.3: grub.cfg (preferring /EFI/BOOT/grub.cfg over
// /boot/grub2/grub.cfg), the grub EFI binary (preferring the -noprefix
// variant, renamed to the canonical name on copy), and the shim EFI binary.
func StageNonUkiBootFiles(mountedScratch, destDir string, requireNoprefix bool) error {
	if err := os.RemoveAll(destDir); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.StageNonUkiBootFiles", "failed to clear install directory", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.StageNonUkiBootFiles", "failed to create install directory", err)
	}

	grubCfgSrc := firstExisting(mountedScratch, "EFI/BOOT/grub.cfg", "boot/grub2/grub.cfg")
	if grubCfgSrc == "" {
		return enginerr.New(enginerr.Servicing, "esp.StageNonUkiBootFiles", "no grub.cfg found in staged image")
	}
	if err := atomicCopy(grubCfgSrc, filepath.Join(destDir, "grub.cfg")); err != nil {
		return err
	}

	grubEfiSrc, renamedFromNoprefix := resolveGrubEfi(mountedScratch, requireNoprefix)
	if grubEfiSrc == "" {
		if requireNoprefix {
			return enginerr.New(enginerr.Servicing, "esp.StageNonUkiBootFiles", "grub EFI binary (-noprefix variant) not found")
		}
		return enginerr.New(enginerr.Servicing, "esp.StageNonUkiBootFiles", "grub EFI binary not found")
	}
	if err := atomicCopy(grubEfiSrc, filepath.Join(destDir, "grubx64.efi")); err != nil {
		return err
	}
	if renamedFromNoprefix {
		logger.Logger().Debugf("renamed -noprefix grub EFI binary to canonical name for %s", destDir)
	}

	shimSrc := firstExisting(mountedScratch, "EFI/BOOT/bootx64.efi", "EFI/BOOT/shimx64.efi")
	if shimSrc == "" {
		return enginerr.New(enginerr.Servicing, "esp.StageNonUkiBootFiles", "shim EFI binary not found")
	}
	if err := atomicCopy(shimSrc, filepath.Join(destDir, "bootx64.efi")); err != nil {
		return err
	}

	return nil
}

func resolveGrubEfi(mountedScratch string, requireNoprefix bool) (src string, fromNoprefix bool) {
	noprefix := firstExisting(mountedScratch, "EFI/BOOT/grubx64-noprefix.efi")
	if noprefix != "" {
		return noprefix, true
	}
	if requireNoprefix {
		return "", false
	}
	return firstExisting(mountedScratch, "EFI/BOOT/grubx64.efi"), false
}

func firstExisting(root string, relPaths ...string) string {
	for _, rel := range relPaths {
		full := filepath.Join(root, rel)
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}
	return ""
}

// atomicCopy copies src to dst via a .new suffix then rename, matching the
// teacher's sbsign-then-mv idiom in imagesign.go.
func atomicCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.atomicCopy", fmt.Sprintf("failed to open %q", src), err)
	}
	defer in.Close()

	tmp := dst + ".new"
	out, err := os.Create(tmp)
	if err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.atomicCopy", fmt.Sprintf("failed to create %q", tmp), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return enginerr.Wrap(enginerr.Servicing, "esp.atomicCopy", "failed to copy file content", err)
	}
	if err := out.Close(); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.atomicCopy", "failed to close copied file", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.atomicCopy", fmt.Sprintf("failed to rename %q into place", dst), err)
	}
	return nil
}
