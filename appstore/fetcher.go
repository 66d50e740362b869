package appstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

var _ Fetcher = (*HTTPFetcher)(nil)

const maxBodyBytes = 1 << 20

// HTTPFetcher performs a single GET per Fetch. It never retries.
type HTTPFetcher struct {
	userAgent string
	http      *http.Client
}

// NewHTTPFetcher returns a fetcher using httpClient, or http.DefaultClient if nil.
func NewHTTPFetcher(httpClient *http.Client, userAgent string) *HTTPFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPFetcher{userAgent: userAgent, http: httpClient}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return body, nil
}
