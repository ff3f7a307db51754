// Package config defines the HostConfiguration input data model, the
// HostStatus persisted output model, and the loader/validator that turns
// on-disk YAML/JSON into validated Go values — generalized from the
// teacher's single-image ImageTemplate into a full host configuration.
package config

// PartitionTableKind enumerates the supported on-disk partition table
// formats for a declared disk. GPT is the only kind the storage engine
// actually provisions; MBR is recognized for adoption-only disks.
type PartitionTableKind string

const (
	PartitionTableGPT PartitionTableKind = "gpt"
	PartitionTableMBR PartitionTableKind = "mbr"
)

// PartitionSize is either a fixed byte count or the sentinel "grow", which
// tells the partition creator to consume the remainder of the disk.
type PartitionSize struct {
	Grow  bool
	Bytes uint64
}

// Partition describes one partition to be created on a disk, in the order
// it must be laid out.
type Partition struct {
	ID    string        `json:"id" yaml:"id"`
	Type  string        `json:"type" yaml:"type"`
	Size  PartitionSize `json:"size" yaml:"size"`
	Label string        `json:"label,omitempty" yaml:"label,omitempty"`
	UUID  string        `json:"uuid,omitempty" yaml:"uuid,omitempty"`
}

// AdoptedPartition identifies a live partition that must already exist on
// the disk and is to be preserved rather than recreated. Exactly one of
// Label or UUID must be set.
type AdoptedPartition struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	UUID  string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
}

// Disk describes one physical or virtual disk and the partitions it
// should carry after servicing.
type Disk struct {
	ID                string             `json:"id" yaml:"id"`
	DevicePath        string             `json:"devicePath" yaml:"devicePath"`
	PartitionTable    PartitionTableKind `json:"partitionTable" yaml:"partitionTable"`
	Partitions        []Partition        `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	AdoptedPartitions []AdoptedPartition `json:"adoptedPartitions,omitempty" yaml:"adoptedPartitions,omitempty"`

	// RawGPTImage selects the storage subsystem's raw-mode path (spec
	// §4.1 "raw mode"): the image carries a full GPT, written onto
	// DevicePath directly instead of built partition-by-partition.
	RawGPTImage bool `json:"rawGptImage,omitempty" yaml:"rawGptImage,omitempty"`
}

// RaidLevel enumerates the software RAID levels the storage engine will
// assemble.
type RaidLevel string

const (
	Raid0  RaidLevel = "raid0"
	Raid1  RaidLevel = "raid1"
	Raid5  RaidLevel = "raid5"
	Raid6  RaidLevel = "raid6"
	Raid10 RaidLevel = "raid10"
)

// RaidArray describes one software RAID array assembled from member block
// devices (by id — disk, partition, or another resolvable node).
type RaidArray struct {
	ID      string    `json:"id" yaml:"id"`
	Level   RaidLevel `json:"level" yaml:"level"`
	Members []string  `json:"members" yaml:"members"`
}

// PassphraseSource selects where a LUKS volume's passphrase comes from.
type PassphraseSource string

const (
	PassphraseRandom PassphraseSource = "random"
	PassphraseStatic PassphraseSource = "static"
)

// EncryptedVolume describes one LUKS-encrypted volume backed by another
// resolvable block device id.
type EncryptedVolume struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	BackingID string `json:"backingId" yaml:"backingId"`
}

// EncryptionConfig configures the set of LUKS volumes, their shared
// passphrase source, and the TPM PCR set they are sealed to.
type EncryptionConfig struct {
	PassphraseSource PassphraseSource  `json:"passphraseSource" yaml:"passphraseSource"`
	StaticPassphrase string            `json:"staticPassphrase,omitempty" yaml:"staticPassphrase,omitempty"`
	Volumes          []EncryptedVolume `json:"volumes" yaml:"volumes"`
	PcrSet           []int             `json:"pcrSet,omitempty" yaml:"pcrSet,omitempty"`
}

// VerityDevice describes one dm-verity device backed by a data and hash
// partition id pair.
type VerityDevice struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	DataID string `json:"dataId" yaml:"dataId"`
	HashID string `json:"hashId" yaml:"hashId"`
}

// AbUpdateConfig declares a two-slot A/B pair over two resolvable volume
// ids.
type AbUpdateConfig struct {
	ID        string `json:"id" yaml:"id"`
	VolumeAID string `json:"volumeAId" yaml:"volumeAId"`
	VolumeBID string `json:"volumeBId" yaml:"volumeBId"`
}

// FilesystemSource enumerates where a filesystem's content comes from.
type FilesystemSource string

const (
	SourceImage    FilesystemSource = "image"
	SourceNew      FilesystemSource = "new"
	SourceAdopted  FilesystemSource = "adopted"
	SourceTmpfs    FilesystemSource = "tmpfs"
	SourceOverlay  FilesystemSource = "overlay"
)

// MountPoint is a filesystem's mount path and rendered mount options.
type MountPoint struct {
	Path    string `json:"path" yaml:"path"`
	Options string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Filesystem binds a resolvable block-device id to a filesystem type,
// content source, and optional mount point.
type Filesystem struct {
	DeviceID string           `json:"deviceId" yaml:"deviceId"`
	FsType   string           `json:"fsType" yaml:"fsType"`
	Source   FilesystemSource `json:"source" yaml:"source"`
	Mount    *MountPoint      `json:"mount,omitempty" yaml:"mount,omitempty"`
}

// SwapDevice binds a resolvable block-device id to be formatted (on clean
// install only) and used as swap space.
type SwapDevice struct {
	DeviceID string `json:"deviceId" yaml:"deviceId"`
}

// User describes one OS user account to provision.
type User struct {
	Name              string   `json:"name" yaml:"name"`
	SecondaryGroups   []string `json:"secondaryGroups,omitempty" yaml:"secondaryGroups,omitempty"`
	SSHPublicKeys     []string `json:"sshPublicKeys,omitempty" yaml:"sshPublicKeys,omitempty"`
	PasswordHash      string   `json:"passwordHash,omitempty" yaml:"passwordHash,omitempty"`
}

// ServiceState enumerates the desired systemd unit state.
type ServiceState string

const (
	ServiceEnabled  ServiceState = "enabled"
	ServiceDisabled ServiceState = "disabled"
)

// ServiceConfig declares the desired enablement state of one systemd unit.
type ServiceConfig struct {
	Name  string       `json:"name" yaml:"name"`
	State ServiceState `json:"state" yaml:"state"`
}

// SelinuxMode enumerates SELinux enforcement modes recognized by the
// (out-of-scope) SELinux relabeling collaborator.
type SelinuxMode string

const (
	SelinuxDisabled   SelinuxMode = "disabled"
	SelinuxPermissive SelinuxMode = "permissive"
	SelinuxEnforcing  SelinuxMode = "enforcing"
)

// OsConfig carries OS customizations applied by the osconfig subsystem.
type OsConfig struct {
	Hostname      string          `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Users         []User          `json:"users,omitempty" yaml:"users,omitempty"`
	Services      []ServiceConfig `json:"services,omitempty" yaml:"services,omitempty"`
	KernelCmdline []string        `json:"kernelCmdline,omitempty" yaml:"kernelCmdline,omitempty"`
	SelinuxMode   SelinuxMode     `json:"selinuxMode,omitempty" yaml:"selinuxMode,omitempty"`
}

// Script describes one hook script invoked by the (out-of-scope) script
// runner collaborator at a named servicing phase.
type Script struct {
	Name  string `json:"name" yaml:"name"`
	Phase string `json:"phase" yaml:"phase"`
	Path  string `json:"path" yaml:"path"`
}

// Recognized Script.Phase values.
const (
	PhasePreServicing  = "preServicing"
	PhasePostProvision = "postProvision"
	PhasePostConfigure = "postConfigure"
)

// HealthCheck describes one post-configure health probe, run in parallel
// with its siblings per spec §5. Exactly one of SystemdServices or
// ScriptPath is set.
type HealthCheck struct {
	Name            string   `json:"name" yaml:"name"`
	SystemdServices []string `json:"systemdServices,omitempty" yaml:"systemdServices,omitempty"`
	ScriptPath      string   `json:"scriptPath,omitempty" yaml:"scriptPath,omitempty"`
	TimeoutSeconds  int      `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

// NetworkConfig is an opaque payload handed to the (out-of-scope) netplan
// renderer collaborator; the engine never interprets its contents.
type NetworkConfig struct {
	Raw map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// AdditionalFile describes one extra file to place into the new root.
type AdditionalFile struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	Mode    uint32 `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// UkiConfig toggles Unified Kernel Image support and the ESP fallback
// policy used when staging boot files.
type UkiConfig struct {
	Enabled      bool         `json:"enabled" yaml:"enabled"`
	FallbackMode FallbackMode `json:"fallbackMode,omitempty" yaml:"fallbackMode,omitempty"`
}

// FallbackMode selects which install's boot files are copied into the
// firmware-default EFI/BOOT directory.
type FallbackMode string

const (
	FallbackRollback   FallbackMode = "rollback"
	FallbackRollforward FallbackMode = "rollforward"
)

// HostConfiguration is the full declarative description of a host, as
// consumed by the servicing orchestrator.
type HostConfiguration struct {
	Disks           []Disk            `json:"disks" yaml:"disks"`
	RaidArrays      []RaidArray       `json:"raidArrays,omitempty" yaml:"raidArrays,omitempty"`
	Encryption      *EncryptionConfig `json:"encryption,omitempty" yaml:"encryption,omitempty"`
	Verity          []VerityDevice    `json:"verity,omitempty" yaml:"verity,omitempty"`
	AbUpdate        *AbUpdateConfig   `json:"abUpdate,omitempty" yaml:"abUpdate,omitempty"`
	Filesystems     []Filesystem      `json:"filesystems" yaml:"filesystems"`
	Swap            []SwapDevice      `json:"swap,omitempty" yaml:"swap,omitempty"`
	OsConfig        OsConfig          `json:"osConfig,omitempty" yaml:"osConfig,omitempty"`
	Scripts         []Script          `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	HealthChecks    []HealthCheck     `json:"healthChecks,omitempty" yaml:"healthChecks,omitempty"`
	Network         *NetworkConfig    `json:"network,omitempty" yaml:"network,omitempty"`
	AdditionalFiles []AdditionalFile  `json:"additionalFiles,omitempty" yaml:"additionalFiles,omitempty"`
	Uki             UkiConfig         `json:"uki,omitempty" yaml:"uki,omitempty"`
	InternalParams  map[string]any    `json:"internalParams,omitempty" yaml:"internalParams,omitempty"`

	// ImageIdentity is an opaque fingerprint of the OS image content used
	// by the storage subsystem to decide whether the image identity has
	// changed (triggering an A/B update proposal) versus a normal update.
	ImageIdentity string `json:"imageIdentity,omitempty" yaml:"imageIdentity,omitempty"`
}

// InternalParam reads a named internal parameter as a bool, defaulting to
// false when absent or of the wrong type. See SPEC_FULL §6 for the
// recognized set (disableGrubNoprefixCheck, disableHostnameCarryOver,
// overridePcrlockEncryption, relaxedCosiValidation, noTransition,
// writableEtcOverlayHooks, dracutDebug, enableUkiSupport, and
// sealRecoveryKeyPassphrase).
func (c *HostConfiguration) InternalParam(name string) bool {
	if c == nil || c.InternalParams == nil {
		return false
	}
	v, ok := c.InternalParams[name]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// InternalParamString reads a named internal parameter as a string,
// defaulting to "" when absent or of the wrong type. Used for
// sealRecoveryKeyPassphrase, the one recognized internal parameter that
// carries a value rather than a toggle.
func (c *HostConfiguration) InternalParamString(name string) string {
	if c == nil || c.InternalParams == nil {
		return ""
	}
	v, ok := c.InternalParams[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// FindDisk returns the disk with the given id, if any.
func (c *HostConfiguration) FindDisk(id string) (*Disk, bool) {
	for i := range c.Disks {
		if c.Disks[i].ID == id {
			return &c.Disks[i], true
		}
	}
	return nil, false
}

// RootFilesystem returns the filesystem entry mounted at "/", if any.
func (c *HostConfiguration) RootFilesystem() (*Filesystem, bool) {
	for i := range c.Filesystems {
		fs := &c.Filesystems[i]
		if fs.Mount != nil && fs.Mount.Path == "/" {
			return fs, true
		}
	}
	return nil, false
}

// VerityActive reports whether any verity device backs the root
// filesystem.
func (c *HostConfiguration) VerityActive() bool {
	root, ok := c.RootFilesystem()
	if !ok {
		return false
	}
	for _, v := range c.Verity {
		if v.ID == root.DeviceID {
			return true
		}
	}
	return false
}
