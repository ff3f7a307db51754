package config

import (
	"fmt"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// Validate runs the dynamic semantic checks spec §7 calls InvalidInput
// errors: duplicate ids across the whole device namespace, duplicate disk
// device paths, unknown id references, and adoption predicates that name
// neither or both of label/uuid.
func Validate(c *HostConfiguration) error {
	seenIDs := map[string]string{} // id -> kind, for a good error message
	claim := func(id, kind string) error {
		if id == "" {
			return enginerr.New(enginerr.InvalidInput, "config.Validate", fmt.Sprintf("%s has an empty id", kind))
		}
		if prior, ok := seenIDs[id]; ok {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("duplicate id %q: declared as both %s and %s", id, prior, kind))
		}
		seenIDs[id] = kind
		return nil
	}

	devicePaths := map[string]string{}
	for _, d := range c.Disks {
		if err := claim(d.ID, "disk"); err != nil {
			return err
		}
		if prior, ok := devicePaths[d.DevicePath]; ok {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("disk device path %q declared by both %q and %q", d.DevicePath, prior, d.ID))
		}
		devicePaths[d.DevicePath] = d.ID

		partIDs := map[string]struct{}{}
		for _, p := range d.Partitions {
			if err := claim(p.ID, "partition"); err != nil {
				return err
			}
			if _, dup := partIDs[p.ID]; dup {
				return enginerr.New(enginerr.InvalidInput, "config.Validate",
					fmt.Sprintf("partition id %q declared twice on disk %q", p.ID, d.ID))
			}
			partIDs[p.ID] = struct{}{}
		}
		for _, a := range d.AdoptedPartitions {
			if err := claim(a.ID, "adopted partition"); err != nil {
				return err
			}
			hasLabel := a.Label != ""
			hasUUID := a.UUID != ""
			if hasLabel == hasUUID {
				return enginerr.New(enginerr.InvalidInput, "config.Validate",
					fmt.Sprintf("adopted partition %q must specify exactly one of label or uuid", a.ID))
			}
		}
		if len(d.AdoptedPartitions) > 0 && d.PartitionTable == "" {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("disk %q adopts partitions but declares no partition table", d.ID))
		}
	}

	for _, r := range c.RaidArrays {
		if err := claim(r.ID, "raid array"); err != nil {
			return err
		}
		if len(r.Members) < 2 {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("raid array %q needs at least two members", r.ID))
		}
		for _, m := range r.Members {
			if !c.knownID(m) {
				return enginerr.New(enginerr.InvalidInput, "config.Validate",
					fmt.Sprintf("raid array %q references unknown member id %q", r.ID, m))
			}
		}
	}

	if c.Encryption != nil {
		if c.Encryption.PassphraseSource == PassphraseStatic && c.Encryption.StaticPassphrase == "" {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				"encryption passphraseSource is static but staticPassphrase is empty")
		}
		for _, v := range c.Encryption.Volumes {
			if err := claim(v.ID, "encrypted volume"); err != nil {
				return err
			}
			if !c.knownID(v.BackingID) {
				return enginerr.New(enginerr.InvalidInput, "config.Validate",
					fmt.Sprintf("encrypted volume %q references unknown backing id %q", v.ID, v.BackingID))
			}
		}
	}

	for _, v := range c.Verity {
		if err := claim(v.ID, "verity device"); err != nil {
			return err
		}
		if !c.knownID(v.DataID) {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("verity device %q references unknown data id %q", v.ID, v.DataID))
		}
		if !c.knownID(v.HashID) {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("verity device %q references unknown hash id %q", v.ID, v.HashID))
		}
	}

	if c.AbUpdate != nil {
		if err := claim(c.AbUpdate.ID, "ab update"); err != nil {
			return err
		}
		if !c.knownID(c.AbUpdate.VolumeAID) {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("ab update %q references unknown volume A id %q", c.AbUpdate.ID, c.AbUpdate.VolumeAID))
		}
		if !c.knownID(c.AbUpdate.VolumeBID) {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("ab update %q references unknown volume B id %q", c.AbUpdate.ID, c.AbUpdate.VolumeBID))
		}
	}

	mountPaths := map[string]string{}
	rootCount := 0
	for _, fs := range c.Filesystems {
		if !c.knownID(fs.DeviceID) {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("filesystem references unknown device id %q", fs.DeviceID))
		}
		if fs.Mount != nil {
			if prior, ok := mountPaths[fs.Mount.Path]; ok {
				return enginerr.New(enginerr.InvalidInput, "config.Validate",
					fmt.Sprintf("mount path %q declared by both %q and %q", fs.Mount.Path, prior, fs.DeviceID))
			}
			mountPaths[fs.Mount.Path] = fs.DeviceID
			if fs.Mount.Path == "/" {
				rootCount++
			}
		}
	}
	if rootCount > 1 {
		return enginerr.New(enginerr.InvalidInput, "config.Validate", "more than one filesystem mounts at \"/\"")
	}

	for _, s := range c.Swap {
		if !c.knownID(s.DeviceID) {
			return enginerr.New(enginerr.InvalidInput, "config.Validate",
				fmt.Sprintf("swap device references unknown id %q", s.DeviceID))
		}
	}

	return nil
}

func (c *HostConfiguration) knownID(id string) bool {
	if id == "" {
		return false
	}
	for _, d := range c.Disks {
		if d.ID == id {
			return true
		}
		for _, p := range d.Partitions {
			if p.ID == id {
				return true
			}
		}
		for _, a := range d.AdoptedPartitions {
			if a.ID == id {
				return true
			}
		}
	}
	for _, r := range c.RaidArrays {
		if r.ID == id {
			return true
		}
	}
	if c.Encryption != nil {
		for _, v := range c.Encryption.Volumes {
			if v.ID == id {
				return true
			}
		}
	}
	for _, v := range c.Verity {
		if v.ID == id {
			return true
		}
	}
	if c.AbUpdate != nil && c.AbUpdate.ID == id {
		return true
	}
	return false
}

// ValidateUpdate enforces the cross-update invariant that no declared
// partition may be removed between the old and new configuration (spec
// §7: Unsupported kind).
func ValidateUpdate(oldCfg, newCfg *HostConfiguration) error {
	if oldCfg == nil {
		return nil
	}
	oldIDs := map[string]struct{}{}
	for _, d := range oldCfg.Disks {
		for _, p := range d.Partitions {
			oldIDs[p.ID] = struct{}{}
		}
	}
	newIDs := map[string]struct{}{}
	for _, d := range newCfg.Disks {
		for _, p := range d.Partitions {
			newIDs[p.ID] = struct{}{}
		}
	}
	for id := range oldIDs {
		if _, ok := newIDs[id]; !ok {
			return enginerr.New(enginerr.Unsupported, "config.ValidateUpdate",
				fmt.Sprintf("partition %q present in the running configuration was removed from the new configuration", id))
		}
	}
	return nil
}
