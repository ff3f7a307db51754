// Package newroot assembles the update root: an alternate filesystem
// hierarchy mounted under a scratch path, torn down on every exit path, per
// SPEC_FULL §4.2. Grounded on the teacher's RawMaker.cleanupOnSuccess/
// cleanupOnError defer pattern (internal/image/rawmaker/rawmaker.go) for
// the "stack of cleanup actions run on scope exit" shape, and on
// microsoft-azure-linux-image-tools's safemount.NewMount/.Close()/
// .CleanClose() idiom (customizeverity.go) for "mount now, commit or
// unwind later" semantics — reimplemented here over shell mount/umount
// since safemount itself is not an importable module in this corpus.
package newroot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// DefaultScratchPath is the preferred scratch root spec §4.2 names.
const DefaultScratchPath = "/mnt/newroot"

// FallbackScratchPath is used when DefaultScratchPath is unusable.
const FallbackScratchPath = "/var/lib/trident/newroot"

const (
	unmountRetries = 5
	unmountDelay   = 100 * time.Millisecond
)

// mountEntry is one mount NewrootMount opened, recorded so Close can unwind
// it in reverse order.
type mountEntry struct {
	target   string
	bind     bool
	readOnly bool
}

// NewrootMount owns a scratch path and every mount opened beneath it. It is
// not safe for concurrent use — spec §4.2 scopes one instance to one
// thread — and no two instances may target the same scratch path at once.
type NewrootMount struct {
	scratchPath string
	mounts      []mountEntry
	committed   bool
}

var activeScratchPaths = map[string]bool{}

// Prepare claims scratchPath exclusively and verifies it is empty (or
// creates it). Returns a distinct error if the path is already owned by
// another NewrootMount in this process, or non-empty on disk.
func Prepare(scratchPath string) (*NewrootMount, error) {
	if activeScratchPaths[scratchPath] {
		return nil, enginerr.New(enginerr.Servicing, "newroot.Prepare",
			fmt.Sprintf("scratch path %q is already owned by another newroot mount", scratchPath))
	}

	if err := os.MkdirAll(scratchPath, 0755); err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "newroot.Prepare",
			fmt.Sprintf("failed to create scratch path %q", scratchPath), err)
	}
	entries, err := os.ReadDir(scratchPath)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "newroot.Prepare",
			fmt.Sprintf("failed to inspect scratch path %q", scratchPath), err)
	}
	if len(entries) > 0 {
		return nil, enginerr.New(enginerr.Servicing, "newroot.Prepare",
			fmt.Sprintf("scratch path %q is not empty", scratchPath))
	}

	activeScratchPaths[scratchPath] = true
	return &NewrootMount{scratchPath: scratchPath}, nil
}

// ScratchPath returns the root of this NewrootMount's hierarchy.
func (n *NewrootMount) ScratchPath() string {
	return n.scratchPath
}

// Mount mounts devicePath at <scratch>/<relativeTarget> with fsType and
// options, creating the target directory if needed, and records it for
// later unmount.
func (n *NewrootMount) Mount(devicePath, relativeTarget, fsType, options string) error {
	target := n.scratchPath + relativeTarget
	if err := n.ensureTargetDir(target); err != nil {
		return err
	}

	cmd := fmt.Sprintf("mount -t %s -o %s %s %s", fsType, orDefaults(options), devicePath, target)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "newroot.Mount",
			fmt.Sprintf("failed to mount %q at %q", devicePath, target), err)
	}

	n.mounts = append(n.mounts, mountEntry{target: target, readOnly: isReadOnlyOption(options)})
	logger.Logger().Infof("mounted %s at %s (fstype=%s)", devicePath, target, fsType)
	return nil
}

// isReadOnlyOption reports whether a comma-separated mount options string
// carries the "ro" option.
func isReadOnlyOption(options string) bool {
	for _, opt := range strings.Split(options, ",") {
		if strings.TrimSpace(opt) == "ro" {
			return true
		}
	}
	return false
}

// BindMount performs a non-recursive private bind mount from an existing
// mountpoint, used for the NTFS special case (spec §4.2 step 3: "if the
// backing device is already mounted elsewhere with NTFS, perform a
// non-recursive private bind mount from the existing mountpoint").
func (n *NewrootMount) BindMount(sourcePath, relativeTarget string) error {
	target := n.scratchPath + relativeTarget
	if err := n.ensureTargetDir(target); err != nil {
		return err
	}

	cmd := fmt.Sprintf("mount --bind %s %s", sourcePath, target)
	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "newroot.BindMount",
			fmt.Sprintf("failed to bind mount %q at %q", sourcePath, target), err)
	}

	n.mounts = append(n.mounts, mountEntry{target: target, bind: true})
	return nil
}

// MountTmpfs mounts tmpfs at <scratch>/tmp and <scratch>/run, per spec
// §4.2 step 4.
func (n *NewrootMount) MountTmpfs() error {
	for _, path := range []string{"/tmp", "/run"} {
		if err := n.Mount("tmpfs", path, "tmpfs", ""); err != nil {
			return err
		}
	}
	return nil
}

// BindHelperBinary bind-mounts the OS-modifier helper binary into the
// newroot if present on the host, per spec §4.2 step 5. A missing helper is
// not an error: the bind mount is opportunistic.
func (n *NewrootMount) BindHelperBinary(hostPath, relativeTarget string) error {
	if _, err := os.Stat(hostPath); os.IsNotExist(err) {
		return nil
	}
	return n.BindMount(hostPath, relativeTarget)
}

func (n *NewrootMount) ensureTargetDir(target string) error {
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	if err := RefuseIfReadOnlyAncestor(target, n.readOnlyMounts()); err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "newroot.ensureTargetDir",
			fmt.Sprintf("failed to create mount target %q", target), err)
	}
	return nil
}

// readOnlyMounts returns the target paths of every mount this NewrootMount
// has opened read-only so far, for RefuseIfReadOnlyAncestor to check new
// mount targets against.
func (n *NewrootMount) readOnlyMounts() map[string]bool {
	out := make(map[string]bool, len(n.mounts))
	for _, m := range n.mounts {
		if m.readOnly {
			out[m.target] = true
		}
	}
	return out
}

func orDefaults(options string) string {
	if options == "" {
		return "defaults"
	}
	return options
}

// Commit marks every mount as intentionally kept (e.g. handed off to a
// chroot-execute step that outlives this NewrootMount value). Close becomes
// a no-op after Commit.
func (n *NewrootMount) Commit() {
	n.committed = true
}

// Close unwinds every recorded mount in LIFO order, retrying each unmount
// up to unmountRetries times with unmountDelay between attempts, per spec
// §4.2's "drop" protocol. A committed NewrootMount releases its scratch-path
// claim but performs no unmounts.
func (n *NewrootMount) Close() error {
	delete(activeScratchPaths, n.scratchPath)
	if n.committed {
		return nil
	}
	return n.unmountAll()
}

func (n *NewrootMount) unmountAll() error {
	var firstErr error
	for i := len(n.mounts) - 1; i >= 0; i-- {
		target := n.mounts[i].target
		if err := unmountWithRetry(target); err != nil {
			logger.Logger().Errorf("failed to unmount %s after retries: %v", target, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}
	n.mounts = nil
	if firstErr != nil {
		return enginerr.Wrap(enginerr.Servicing, "newroot.Close", "failed to unwind newroot mounts", firstErr)
	}
	return nil
}

func unmountWithRetry(target string) error {
	var lastErr error
	for i := 0; i < unmountRetries; i++ {
		if _, err := shell.ExecCmd(fmt.Sprintf("umount %s", target), true, "", nil); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(unmountDelay)
	}
	return lastErr
}
