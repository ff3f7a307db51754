package esp

import (
	"os"
	"regexp"
	"sort"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// legacyEntryPattern matches a pre-existing (non-trident-managed) UKI
// filename such as vmlinuz-5.15.0.azl3.efi.
var legacyEntryPattern = regexp.MustCompile(`^vmlinuz-[0-9][0-9.]*\.azl3\.efi$`)

// ResolvePreviousUki implements spec §4.3's rollback-target resolution:
// with >=2 trident-managed entries, pick the second-most-recent; with
// exactly 1 managed and >=1 pre-existing entry, pick the most recent
// pre-existing one; otherwise fail with a manual-rollback error.
func ResolvePreviousUki(espRoot string) (string, error) {
	managed, err := EnumerateUkiEntries(espRoot)
	if err != nil {
		return "", err
	}

	if len(managed) >= 2 {
		return managed[len(managed)-2].FileName, nil
	}

	legacy, err := listLegacyEntries(espRoot)
	if err != nil {
		return "", err
	}

	if len(managed) == 1 && len(legacy) >= 1 {
		return legacy[len(legacy)-1], nil
	}

	return "", enginerr.New(enginerr.Servicing, "esp.ResolvePreviousUki",
		"cannot determine a previous UKI entry for rollback; manual rollback required")
}

func listLegacyEntries(espRoot string) ([]string, error) {
	files, err := os.ReadDir(UkiDir(espRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Servicing, "esp.listLegacyEntries", "failed to list UKI directory", err)
	}
	var out []string
	for _, f := range files {
		if legacyEntryPattern.MatchString(f.Name()) {
			out = append(out, f.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
