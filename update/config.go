package update

import (
	"time"

	"github.com/tnicklin/update_gate/timeutil"
)

// Config holds update checker, gate and poller configuration.
type Config struct {
	// InstalledVersion is the running application's version string.
	InstalledVersion string `yaml:"installed_version"`
	// ReleaseThreshold is how long a store release must have been out
	// before it is reported.
	ReleaseThreshold time.Duration `yaml:"release_threshold"`
	// RecheckInterval is the minimum time between two check attempts.
	RecheckInterval time.Duration `yaml:"recheck_interval"`
	// SkipStampOnFailure leaves the last-checked time untouched when a
	// check fails, so the next trigger retries.
	SkipStampOnFailure bool          `yaml:"skip_stamp_on_failure"`
	PollInterval       time.Duration `yaml:"poll_interval"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.ReleaseThreshold <= 0 {
		c.ReleaseThreshold = timeutil.DefaultWindow
	}
	if c.RecheckInterval <= 0 {
		c.RecheckInterval = timeutil.DefaultWindow
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Hour
	}
}
