package appstore

import (
	"context"
	"errors"
	"time"

	"github.com/tnicklin/update_gate/version"
)

// Lookup failure kinds. Callers match with errors.Is.
var (
	ErrNetwork     = errors.New("store lookup request failed")
	ErrDecode      = errors.New("store lookup response malformed")
	ErrCardinality = errors.New("store lookup returned unexpected result count")
)

// Fetcher retrieves the raw body at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Client looks up the published metadata for the configured app.
type Client interface {
	Lookup(ctx context.Context) (Metadata, error)
}

// Metadata is the single store record describing the published release.
type Metadata struct {
	Version     version.Version
	ReleaseDate time.Time
	StoreURL    string
	TrackID     int64
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

type lookupResult struct {
	Version                   string `json:"version"`
	CurrentVersionReleaseDate string `json:"currentVersionReleaseDate"`
	TrackViewURL              string `json:"trackViewUrl"`
	TrackID                   int64  `json:"trackId"`
	BundleID                  string `json:"bundleId"`
}
