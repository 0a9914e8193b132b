// Package services contains clients for the external systems the orchestrator
// talks to: the audience segmentation service and the advertising platforms.
package services

import (
	"context"
	"sync"

	"github.com/openpromo/hermes/models"
)

// PlatformCredentials carries the decrypted connection fields handed to an
// adapter for one submission. Never persisted.
type PlatformCredentials struct {
	AccessToken string
	AccountID   string
	FundingID   string
}

// PlatformResult holds the platform-assigned resource identifiers returned by
// a successful submission. CampaignID is the top-level identifier; a
// submission that did not produce one is not a success.
type PlatformResult struct {
	CampaignID string
	ChildIDs   []string
}

// ExternalIDs returns all assigned identifiers, top-level first
func (r *PlatformResult) ExternalIDs() []string {
	ids := make([]string, 0, 1+len(r.ChildIDs))
	ids = append(ids, r.CampaignID)
	ids = append(ids, r.ChildIDs...)
	return ids
}

// PlatformPublisher is implemented once per advertising platform. Translate is
// pure: it either produces a platform payload or nil when the ad cannot be
// represented for the platform, which is distinct from a submission failure.
// Submit performs the publish calls and must return an error rather than
// panicking; isolation across platforms is enforced by the batch driver.
type PlatformPublisher interface {
	Key() string

	// RequiresFunding reports whether submissions need a funding identifier
	// on the connection (LinkedIn line items).
	RequiresFunding() bool

	// PrepareAsset uploads the ad's creative and returns a platform-local
	// handle. Platforms without a pre-upload step return "" without error.
	// Callers tolerate a failed upload and translate without the handle.
	PrepareAsset(ctx context.Context, creds PlatformCredentials, creativeURL string) (string, error)

	Translate(ad *models.Ad, targeting models.Targeting, assetHandle string) any

	Submit(ctx context.Context, creds PlatformCredentials, payload any) (*PlatformResult, error)
}

// PublisherRegistry maps platform keys to their adapters. Adding a platform is
// a registration, not a change to the batch driver.
type PublisherRegistry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]PlatformPublisher
}

// NewPublisherRegistry creates an empty registry
func NewPublisherRegistry() *PublisherRegistry {
	return &PublisherRegistry{byKey: make(map[string]PlatformPublisher)}
}

// Register adds a publisher under its key. Re-registering a key replaces the
// previous adapter and keeps its position.
func (r *PublisherRegistry) Register(p PlatformPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[p.Key()]; !ok {
		r.order = append(r.order, p.Key())
	}
	r.byKey[p.Key()] = p
}

// Get returns the publisher for the key, or nil when none is registered
func (r *PublisherRegistry) Get(key string) PlatformPublisher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey[key]
}

// Keys returns the registered platform keys in registration order
func (r *PublisherRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}
