// Package notify hands update notices to the presentation layer.
package notify

import "context"

// Notice describes an available update. StoreURL is the page the user
// should be sent to.
type Notice struct {
	StoreURL         string `json:"store_url"`
	Classification   string `json:"classification"`
	InstalledVersion string `json:"installed_version"`
	StoreVersion     string `json:"store_version"`
	Required         bool   `json:"required"`
}

// Notifier delivers a Notice. Implementations decide on their own
// threading; callers make no affinity guarantees.
type Notifier interface {
	NotifyUpdate(ctx context.Context, n Notice) error
}
