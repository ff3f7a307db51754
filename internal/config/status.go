package config

import "github.com/open-edge-platform/host-servicer/internal/enginerr"

// ServicingType is the kind of servicing cycle the orchestrator chose, per
// the max-over-proposals rule in the servicing-type selection design note.
// Ordering (least to most invasive) matters: NoActive < HotPatch <
// NormalUpdate < UpdateAndReboot < AbUpdate < CleanInstall.
type ServicingType int

const (
	NoActive ServicingType = iota
	HotPatch
	NormalUpdate
	UpdateAndReboot
	AbUpdate
	CleanInstall
)

func (t ServicingType) String() string {
	switch t {
	case NoActive:
		return "none"
	case HotPatch:
		return "hot_patch"
	case NormalUpdate:
		return "normal_update"
	case UpdateAndReboot:
		return "update_and_reboot"
	case AbUpdate:
		return "ab_update"
	case CleanInstall:
		return "clean_install"
	default:
		return "unknown"
	}
}

// ServicingState is the position of a servicing run in the state machine
// described in spec §4.5.
type ServicingState string

const (
	NotProvisioned ServicingState = "NotProvisioned"
	Staging        ServicingState = "Staging"
	Staged         ServicingState = "Staged"
	Finalized      ServicingState = "Finalized"
	Provisioned    ServicingState = "Provisioned"
)

// AbActiveVolume identifies which A/B slot is currently live.
type AbActiveVolume string

const (
	AbNone AbActiveVolume = "None"
	AbA    AbActiveVolume = "A"
	AbB    AbActiveVolume = "B"
)

// HostStatus is the persisted record of the last servicing cycle. It is
// owned exclusively by the DataStore and mutated only through its
// WithStatus critical section.
type HostStatus struct {
	ServicingType   ServicingType     `yaml:"servicingType"`
	ServicingState  ServicingState    `yaml:"servicingState"`
	Spec            *HostConfiguration `yaml:"spec,omitempty"`
	SpecOld         *HostConfiguration `yaml:"specOld,omitempty"`
	AbActiveVolume  AbActiveVolume    `yaml:"abActiveVolume"`
	InstallIndex    int               `yaml:"installIndex"`
	PartitionPaths  map[string]string `yaml:"partitionPaths,omitempty"`
	DiskUUIDs       map[string]string `yaml:"diskUuids,omitempty"`
	LastError       *enginerr.Error   `yaml:"lastError,omitempty"`

	// StagedUkiFileName carries a UKI build's committed boot-order rename
	// from Stage to a later Finalize call, surviving a process restart
	// between the two (spec §4.3's trial-boot BootNext).
	StagedUkiFileName string `yaml:"stagedUkiFileName,omitempty"`
}

// NewHostStatus returns a fresh, never-provisioned status record.
func NewHostStatus() *HostStatus {
	return &HostStatus{
		ServicingType:  NoActive,
		ServicingState: NotProvisioned,
		AbActiveVolume: AbNone,
		PartitionPaths: map[string]string{},
		DiskUUIDs:      map[string]string{},
	}
}

// Clone returns a deep-enough copy of the status for use as a pre-stage
// snapshot (stage failures must never mutate the persisted record).
func (s *HostStatus) Clone() *HostStatus {
	if s == nil {
		return nil
	}
	c := *s
	c.PartitionPaths = copyMap(s.PartitionPaths)
	c.DiskUUIDs = copyMap(s.DiskUUIDs)
	return &c
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
