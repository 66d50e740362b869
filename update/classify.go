package update

import (
	"time"

	"github.com/tnicklin/update_gate/timeutil"
	"github.com/tnicklin/update_gate/version"
)

// Classify compares installed against the store version. Releases that
// are not yet older than threshold are still rolling out and always
// classify as NoUpdate.
func Classify(installed, storeVersion version.Version, releaseDate, now time.Time, threshold time.Duration) Classification {
	if !timeutil.Settled(releaseDate, now, threshold) {
		return NoUpdate
	}

	switch {
	case storeVersion.Major > installed.Major:
		return Required
	case storeVersion.Major != installed.Major:
		return NoUpdate
	case storeVersion.Minor > installed.Minor:
		return Optional
	case storeVersion.Minor == installed.Minor && storeVersion.Patch > installed.Patch:
		return Optional
	default:
		return NoUpdate
	}
}
