package appstore

import (
	"net/http"
	"time"
)

// Config holds the store lookup configuration.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	BundleID string `yaml:"bundle_id"`
	Country  string `yaml:"country"`
	// StoreURL is used when the lookup result carries no trackViewUrl.
	StoreURL   string        `yaml:"store_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	HTTPClient *http.Client  `yaml:"-"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://itunes.apple.com"
	}
	if c.UserAgent == "" {
		c.UserAgent = "update-gate/1.0"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}
