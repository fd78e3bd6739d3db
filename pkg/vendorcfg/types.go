// Package vendorcfg resolves vendor credentials and endpoints for task
// creation. Resolution runs fresh on every call and walks an ordered set
// of fallback tiers: user proxy provider → provider+token (owned, then
// shared-pool) → environment default.
package vendorcfg

import (
	"context"
	"fmt"
	"time"
)

// Provider is one configured vendor endpoint row.
type Provider struct {
	ID      string
	OwnerID string
	Vendor  string   // primary vendor name
	Vendors []string // additional vendors served (proxy membership list)
	BaseURL string
	Proxy   bool
	Enabled bool
}

// Serves reports whether the provider can route requests for vendor.
func (p *Provider) Serves(vendor string) bool {
	if p.Vendor == vendor {
		return true
	}
	for _, v := range p.Vendors {
		if v == vendor {
			return true
		}
	}
	return false
}

// Token is one stored API key. Shared tokens belong to a pool and may be
// placed in a cooldown window after a quota hit.
type Token struct {
	ID            string
	OwnerID       string
	ProviderID    string
	Vendor        string
	Key           string
	Shared        bool
	CooldownUntil time.Time
}

// InCooldown reports whether the token is resting at instant now.
func (t *Token) InCooldown(now time.Time) bool {
	return !t.CooldownUntil.IsZero() && now.Before(t.CooldownUntil)
}

// SharedBase is a provider-independent base-URL row for one vendor.
type SharedBase struct {
	Vendor  string
	BaseURL string
	Enabled bool
}

// Store is the lookup contract the resolver depends on. Implementations:
// MemStore (tests, CLI) and postgres.PGStore.
type Store interface {
	// ProvidersByOwner returns all provider rows owned by ownerID.
	ProvidersByOwner(ctx context.Context, ownerID string) ([]Provider, error)
	// Provider returns the provider row by id, or nil if absent.
	Provider(ctx context.Context, id string) (*Provider, error)
	// TokensByVendor returns all token rows for vendor (owned and shared).
	TokensByVendor(ctx context.Context, vendor string) ([]Token, error)
	// SharedBase returns the enabled shared base-URL row for vendor, or
	// nil if none exists.
	SharedBase(ctx context.Context, vendor string) (*SharedBase, error)
}

// ConfigError means resolution failed at a required step: the task cannot
// be created and must not be retried automatically.
type ConfigError struct {
	Vendor string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("vendor %q not configured: %s", e.Vendor, e.Reason)
}
