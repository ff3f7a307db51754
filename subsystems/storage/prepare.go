package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/open-edge-platform/host-servicer/engine/context"
	"github.com/open-edge-platform/host-servicer/engine/storage"
	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

// prepareDisk adopts, then partitions (or raw-GPT-writes), one declared
// disk, recording every resulting id -> path into ec.
func (s *Subsystem) prepareDisk(ec *context.EngineContext, d config.Disk) error {
	hasAdopted := len(d.AdoptedPartitions) > 0
	var matched map[string]storage.AdoptedPartitionInfo

	if hasAdopted {
		var unmatched []string
		var err error
		matched, unmatched, err = storage.AdoptPartitions(d, s.live)
		if err != nil {
			return err
		}
		for id, info := range matched {
			if err := ec.RecordPartitionPath(id, info.Path); err != nil {
				return err
			}
		}
		if len(unmatched) > 0 {
			logger.Logger().Warnf("disk %s: %d live partitions unmatched by any adoption, marked for deletion by the partition tool: %v",
				d.ID, len(unmatched), unmatched)
		}
	}

	if d.RawGPTImage {
		return s.prepareRawGPT(ec, d)
	}

	plans := storage.PlanFromDisk(d)
	if hasAdopted {
		plans = storage.MergeAdoptedPartitions(plans, matched)
	}
	if len(plans) == 0 {
		return nil
	}
	paths, err := storage.CreatePartitions(d.DevicePath, plans, hasAdopted)
	if err != nil {
		return err
	}
	for id, path := range paths {
		if err := ec.RecordPartitionPath(id, path); err != nil {
			return err
		}
	}
	return nil
}

// prepareRawGPT drains the image's raw-GPT stream to a scratch file, then
// delegates to engine/storage.WriteRawGPT, per spec §4.1's raw-mode
// alternative path.
func (s *Subsystem) prepareRawGPT(ec *context.EngineContext, d config.Disk) error {
	if ec.Image == nil {
		return enginerr.New(enginerr.InvalidInput, "storage.prepareRawGPT",
			fmt.Sprintf("disk %q requests raw-GPT mode but no image handle is attached to this context", d.ID))
	}

	src, err := spoolImageToScratchFile(ec)
	if err != nil {
		return err
	}
	defer os.Remove(src)

	diskUUID, paths, err := storage.WriteRawGPT(d.DevicePath, src, d)
	if err != nil {
		return err
	}
	ec.RecordDiskUUID(d.ID, diskUUID)
	for id, path := range paths {
		if err := ec.RecordPartitionPath(id, path); err != nil {
			return err
		}
	}
	return nil
}

func spoolImageToScratchFile(ec *context.EngineContext) (string, error) {
	r, err := ec.Image.Reader()
	if err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "storage.spoolImageToScratchFile", "failed to open image stream", err)
	}
	defer r.Close()

	f, err := os.CreateTemp("", "hostsvc-rawgpt-*.img")
	if err != nil {
		return "", enginerr.Wrap(enginerr.Internal, "storage.spoolImageToScratchFile", "failed to create scratch file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", enginerr.Wrap(enginerr.Servicing, "storage.spoolImageToScratchFile", "failed to spool raw image", err)
	}
	return f.Name(), nil
}

// prepareRaid assembles every declared RAID array from its already-
// recorded member paths, per spec §4.1.
func (s *Subsystem) prepareRaid(ec *context.EngineContext) error {
	for _, r := range ec.NewSpec.RaidArrays {
		memberPaths := make([]string, len(r.Members))
		for i, id := range r.Members {
			path, err := resolvePath(ec, id)
			if err != nil {
				return err
			}
			memberPaths[i] = path
		}
		devicePath, err := storage.AssembleRaidArray(r, memberPaths)
		if err != nil {
			return err
		}
		if err := ec.RecordPartitionPath(r.ID, devicePath); err != nil {
			return err
		}
	}
	return nil
}

// prepareEncryption formats and opens every declared LUKS volume. On non-UKI
// images each volume is sealed to the configured PCR set via SealToPCRPolicy;
// on UKI images only the recovery-key file is written and the key is not
// sealed to the TPM.
func (s *Subsystem) prepareEncryption(ec *context.EngineContext) error {
	enc := ec.NewSpec.Encryption
	if enc == nil {
		return nil
	}

	sealPassphrase := ec.NewSpec.InternalParamString("sealRecoveryKeyPassphrase")
	ukiActive := ec.NewSpec.Uki.Enabled

	for _, v := range enc.Volumes {
		backingPath, err := resolvePath(ec, v.BackingID)
		if err != nil {
			return err
		}

		mapperPath, passphrase, err := storage.FormatEncryptedVolume(v, enc, backingPath, ukiActive, sealPassphrase)
		if err != nil {
			return err
		}

		if !ukiActive {
			if err := storage.SealToPCRPolicy(v.Name, enc); err != nil {
				passphrase.Zeroize()
				return err
			}
		}
		passphrase.Zeroize()

		if err := ec.RecordPartitionPath(v.ID, mapperPath); err != nil {
			return err
		}
	}
	return nil
}

// prepareVerity activates every declared dm-verity device from its
// already-recorded data/hash partitions.
func (s *Subsystem) prepareVerity(ec *context.EngineContext) error {
	for _, v := range ec.NewSpec.Verity {
		dataPath, err := resolvePath(ec, v.DataID)
		if err != nil {
			return err
		}
		hashPath, err := resolvePath(ec, v.HashID)
		if err != nil {
			return err
		}
		mappedPath, err := storage.ActivateVerity(v, dataPath, hashPath)
		if err != nil {
			return err
		}
		if err := ec.RecordPartitionPath(v.ID, mappedPath); err != nil {
			return err
		}
	}
	return nil
}

// prepareSwap formats every declared swap device. Only called on a clean
// install: spec §4.1 ("Swap: mkswap on clean install only, A/B never
// re-formats swap").
func (s *Subsystem) prepareSwap(ec *context.EngineContext) error {
	for _, sw := range ec.NewSpec.Swap {
		path, err := resolvePath(ec, sw.DeviceID)
		if err != nil {
			return err
		}
		if err := storage.FormatSwap(sw, path, ec.ServicingType); err != nil {
			return err
		}
	}
	return nil
}
