package store

import (
	"context"
	"errors"
	"time"
)

// LastCheckedKey is the preference key holding the time of the last
// update check attempt.
const LastCheckedKey = "update.last_checked_at"

// ErrNotOpen is returned by every operation on a store that has not been opened.
var ErrNotOpen = errors.New("store is not open")

// CheckRecord is one row of update check history.
type CheckRecord struct {
	ID               string    `json:"id"`
	CheckedAt        time.Time `json:"checked_at"`
	Classification   string    `json:"classification"`
	InstalledVersion string    `json:"installed_version,omitempty"`
	StoreVersion     string    `json:"store_version,omitempty"`
	ReleaseDate      time.Time `json:"release_date,omitzero"`
	StoreURL         string    `json:"store_url,omitempty"`
	Error            string    `json:"error,omitempty"`
}

type Store interface {
	Open(ctx context.Context) error
	Close() error

	RestoreFromDisk(ctx context.Context, path string) error
	FlushToDisk(ctx context.Context, path string) error

	GetTime(ctx context.Context, key string) (time.Time, bool, error)
	SetTime(ctx context.Context, key string, t time.Time) error

	RecordCheck(ctx context.Context, rec CheckRecord) error
	ListChecks(ctx context.Context, limit int) ([]CheckRecord, error)
}

// Config holds store configuration.
type Config struct {
	Path          string        `yaml:"path"`
	FlushDebounce time.Duration `yaml:"flush_debounce"`
}
