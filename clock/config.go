package clock

import "time"

// Config selects the clock used to timestamp update checks.
// An empty NTPServer means the system clock.
type Config struct {
	NTPServer    string        `yaml:"ntp_server"`
	SyncInterval time.Duration `yaml:"sync_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}
