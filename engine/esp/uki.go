package esp

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// EntriesRelContent is the fixed content required at <ESP>/loader/entries.srel.
const EntriesRelContent = "type1\n"

// entryPattern matches UKI filenames of the form vmlinuz-<n>-<suffix>.
var entryPattern = regexp.MustCompile(`^vmlinuz-(\d+)-(.+)$`)

// UkiEntry is one parsed entry from the UKI directory.
type UkiEntry struct {
	FileName string
	Order    int
	Suffix   string
}

// StageUki copies the single .efi from <source>/EFI/Linux/ to
// <espRoot>/EFI/Linux/vmlinuz-0.efi.staged and ensures entries.srel exists,
// per spec §4.3's UKI stage.
func StageUki(sourceDir, espRoot string) error {
	entries, err := os.ReadDir(filepath.Join(sourceDir, "EFI", "Linux"))
	if err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.StageUki", "failed to read source UKI directory", err)
	}
	var ukiSrc string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".efi" {
			ukiSrc = filepath.Join(sourceDir, "EFI", "Linux", e.Name())
			break
		}
	}
	if ukiSrc == "" {
		return enginerr.New(enginerr.Servicing, "esp.StageUki", "no .efi file found under source EFI/Linux")
	}

	destDir := UkiDir(espRoot)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.StageUki", "failed to create ESP UKI directory", err)
	}
	staged := filepath.Join(destDir, "vmlinuz-0.efi.staged")
	if err := atomicCopy(ukiSrc, staged); err != nil {
		return err
	}

	loaderDir := filepath.Join(espRoot, "loader")
	if err := os.MkdirAll(loaderDir, 0755); err != nil {
		return enginerr.Wrap(enginerr.Servicing, "esp.StageUki", "failed to create loader directory", err)
	}
	relPath := filepath.Join(loaderDir, "entries.srel")
	if _, err := os.Stat(relPath); os.IsNotExist(err) {
		if err := os.WriteFile(relPath, []byte(EntriesRelContent), 0644); err != nil {
			return enginerr.Wrap(enginerr.Servicing, "esp.StageUki", "failed to write entries.srel", err)
		}
	}

	return nil
}

// EnumerateUkiEntries lists every file in <espRoot>/EFI/Linux matching
// vmlinuz-<n>-<suffix>, kept iff n parses as a non-negative integer and
// suffix is non-empty, per the testable property in spec §8.
func EnumerateUkiEntries(espRoot string) ([]UkiEntry, error) {
	dir := UkiDir(espRoot)
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "esp.EnumerateUkiEntries", "failed to list UKI directory", err)
	}

	var out []UkiEntry
	for _, f := range files {
		m := entryPattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		order, err := strconv.Atoi(m[1])
		if err != nil || m[2] == "" {
			continue
		}
		out = append(out, UkiEntry{FileName: f.Name(), Order: order, Suffix: m[2]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// CommitStagedUki performs the UKI boot-order update of spec §4.3: compute
// the target suffix from the currently active side, remove any prior entry
// with that exact suffix, and rename the staged file to
// vmlinuz-<max_index+1>-<suffix>, where max_index starts at 99.
func CommitStagedUki(espRoot string, targetSide Side, installIndex int) (string, error) {
	entries, err := EnumerateUkiEntries(espRoot)
	if err != nil {
		return "", err
	}

	targetSuffix := side2Suffix(targetSide, installIndex)
	maxIndex := 99
	for _, e := range entries {
		if e.Order > maxIndex {
			maxIndex = e.Order
		}
		if e.Suffix == targetSuffix {
			if err := os.Remove(filepath.Join(UkiDir(espRoot), e.FileName)); err != nil {
				return "", enginerr.Wrap(enginerr.Servicing, "esp.CommitStagedUki",
					"failed to remove prior entry with matching suffix", err)
			}
		}
	}

	staged := filepath.Join(UkiDir(espRoot), "vmlinuz-0.efi.staged")
	newName := UkiFileName(maxIndex+1, targetSide, installIndex)
	dest := filepath.Join(UkiDir(espRoot), newName)
	if err := os.Rename(staged, dest); err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "esp.CommitStagedUki", "failed to commit staged UKI", err)
	}
	return newName, nil
}

func side2Suffix(side Side, installIndex int) string {
	return "azl" + side.suffix() + strconv.Itoa(installIndex) + ".efi"
}
