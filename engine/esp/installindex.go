package esp

import (
	"os"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// MaxInstallIndex bounds the linear scan spec §9 requires ("a linear scan
// from 0 with an upper bound (1000) guarding against a corrupt ESP").
const MaxInstallIndex = 1000

// AllocateInstallIndex scans espRoot for the smallest non-negative integer
// i such that neither AZLA<i> nor AZLB<i> exists, per spec §4.3.
func AllocateInstallIndex(espRoot string) (int, error) {
	for i := 0; i < MaxInstallIndex; i++ {
		aExists := dirExists(InstallDir(espRoot, i, SideA))
		bExists := dirExists(InstallDir(espRoot, i, SideB))
		if !aExists && !bExists {
			return i, nil
		}
	}
	return 0, enginerr.New(enginerr.Servicing, "esp.AllocateInstallIndex",
		"no free install index found below the upper bound; ESP may be corrupt")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
