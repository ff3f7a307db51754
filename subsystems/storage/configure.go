package storage

import (
	"os"
	"path/filepath"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/graph"
	"github.com/open-edge-platform/host-servicer/engine/storage"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// RenderStorageFiles writes /etc/fstab, /etc/crypttab (if any encrypted or
// swap-over-LUKS volumes exist), and /etc/mdadm/mdadm.conf (if any RAID
// array exists) under execRoot, per spec §4.1/§6.
func RenderStorageFiles(ec *context.EngineContext, execRoot string) error {
	resolver := graph.NewResolver(ec.Graph, ec.NewSpec, ec.UpdatesB())

	pathFor := func(deviceID string) (string, error) {
		flat, err := resolver.FlattenFully(deviceID)
		if err != nil {
			return "", err
		}
		return ec.PartitionPath(flat)
	}

	verityBacked := make(map[string]bool, len(ec.NewSpec.Filesystems))
	for _, fs := range ec.NewSpec.Filesystems {
		verityBacked[fs.DeviceID] = isVerityBacked(ec, fs.DeviceID)
	}

	fstab, err := storage.RenderFstab(ec.NewSpec, pathFor, verityBacked)
	if err != nil {
		return err
	}
	if err := writeUnderRoot(execRoot, "/etc/fstab", fstab); err != nil {
		return err
	}

	crypttab, err := storage.RenderCrypttab(ec.NewSpec, pathFor, mapperNameForDevice(ec))
	if err != nil {
		return err
	}
	if crypttab != "" {
		if err := writeUnderRoot(execRoot, "/etc/crypttab", crypttab); err != nil {
			return err
		}
	}

	mdadmConf, err := storage.RenderMdadmConf(ec.NewSpec)
	if err != nil {
		return err
	}
	if mdadmConf != "" {
		if err := writeUnderRoot(execRoot, "/etc/mdadm/mdadm.conf", mdadmConf); err != nil {
			return err
		}
	}

	return nil
}

func mapperNameForDevice(ec *context.EngineContext) func(string) (string, bool, bool) {
	return func(deviceID string) (string, bool, bool) {
		if ec.NewSpec.Encryption == nil {
			return "", false, false
		}
		for _, v := range ec.NewSpec.Encryption.Volumes {
			if v.ID == deviceID {
				return v.Name, true, true
			}
		}
		return "", false, false
	}
}

// isVerityBacked reports whether deviceID is, or (through a single A/B-pair
// indirection) resolves directly to, a dm-verity device node.
func isVerityBacked(ec *context.EngineContext, deviceID string) bool {
	n, ok := ec.Graph.Node(deviceID)
	if !ok {
		return false
	}
	if n.Kind == graph.NodeVerityDevice {
		return true
	}
	if n.Kind != graph.NodeAbPair {
		return false
	}
	resolver := graph.NewResolver(ec.Graph, ec.NewSpec, ec.UpdatesB())
	next, err := resolver.Flatten(deviceID)
	if err != nil {
		return false
	}
	n2, ok := ec.Graph.Node(next)
	return ok && n2.Kind == graph.NodeVerityDevice
}

func writeUnderRoot(execRoot, relativePath, content string) error {
	target := execRoot + relativePath
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.writeUnderRoot", "failed to create "+filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "storage.writeUnderRoot", "failed to write "+target, err)
	}
	return nil
}
