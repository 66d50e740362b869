package appstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tnicklin/update_gate/timeutil"
	"github.com/tnicklin/update_gate/version"
)

var _ Client = (*DefaultClient)(nil)

// DefaultClient resolves store metadata through the lookup endpoint.
type DefaultClient struct {
	baseURL  string
	bundleID string
	country  string
	storeURL string
	fetcher  Fetcher
}

// Params holds configuration for creating a new DefaultClient.
type Params struct {
	Config  Config
	Fetcher Fetcher
}

// New creates a lookup client. When no Fetcher is given an HTTPFetcher is
// built from the config.
func New(p Params) *DefaultClient {
	p.Config.Defaults()

	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(p.Config.HTTPClient, p.Config.UserAgent)
	}

	return &DefaultClient{
		baseURL:  p.Config.BaseURL,
		bundleID: p.Config.BundleID,
		country:  p.Config.Country,
		storeURL: p.Config.StoreURL,
		fetcher:  fetcher,
	}
}

// LookupURL returns the endpoint queried by Lookup.
func (c *DefaultClient) LookupURL() (string, error) {
	if strings.TrimSpace(c.bundleID) == "" {
		return "", errors.New("appstore: bundle id is required")
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + "/lookup"

	query := endpoint.Query()
	query.Set("bundleId", c.bundleID)
	if c.country != "" {
		query.Set("country", c.country)
	}
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

// Lookup fetches and decodes the store record. Exactly one result is expected.
func (c *DefaultClient) Lookup(ctx context.Context) (Metadata, error) {
	endpoint, err := c.LookupURL()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	body, err := c.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			return Metadata{}, err
		}
		return Metadata{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return c.decode(body)
}

func (c *DefaultClient) decode(body []byte) (Metadata, error) {
	var payload lookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if payload.Results == nil {
		return Metadata{}, fmt.Errorf("%w: missing results", ErrDecode)
	}
	if len(payload.Results) != 1 {
		return Metadata{}, fmt.Errorf("%w: got %d", ErrCardinality, len(payload.Results))
	}

	result := payload.Results[0]
	if result.Version == "" || result.CurrentVersionReleaseDate == "" {
		return Metadata{}, fmt.Errorf("%w: missing version or release date", ErrDecode)
	}

	v, err := version.Parse(result.Version)
	if err != nil {
		return Metadata{}, fmt.Errorf("store version: %w", err)
	}

	released, err := timeutil.ParseRFC3339(result.CurrentVersionReleaseDate)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: release date: %v", ErrDecode, err)
	}

	storeURL := result.TrackViewURL
	if storeURL == "" {
		storeURL = c.storeURL
	}

	return Metadata{
		Version:     v,
		ReleaseDate: released,
		StoreURL:    storeURL,
		TrackID:     result.TrackID,
	}, nil
}
