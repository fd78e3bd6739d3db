package vendorcfg

import (
	"context"
	"os"
	"time"

	"github.com/ananyarao/canvasflow/pkg/task"
)

// envFallbacks lists the vendors that may fall back to an environment
// variable when the user has configured neither a provider nor a proxy.
// Explicit user configuration always wins over this implicit tier.
var envFallbacks = map[string]string{
	"openai":       "OPENAI_API_KEY",
	"openai-image": "OPENAI_API_KEY",
	"anthropic":    "ANTHROPIC_API_KEY",
	"gemini":       "GEMINI_API_KEY",
}

// defaultBaseURLs is the last tier of base-URL resolution.
var defaultBaseURLs = map[string]string{
	"openai":       "https://api.openai.com/v1",
	"openai-image": "https://api.openai.com/v1",
	"anthropic":    "https://api.anthropic.com",
	"gemini":       "https://generativelanguage.googleapis.com",
	"kling":        "https://api.klingai.com",
	"minimax":      "https://api.minimax.io",
	"flux":         "https://api.bfl.ai",
}

// Resolver walks the fallback tiers against a Store.
type Resolver struct {
	store Store
	now   func() time.Time
	env   func(string) string
}

// NewResolver creates a Resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now, env: os.Getenv}
}

// Resolve produces the VendorContext for one (user, vendor) pair. It is
// evaluated fresh on every task creation and never cached.
func (r *Resolver) Resolve(ctx context.Context, userID, vendor string) (task.VendorContext, error) {
	providers, err := r.store.ProvidersByOwner(ctx, userID)
	if err != nil {
		return task.VendorContext{}, err
	}

	// Tier 1: direct proxy-provider match for (owner, vendor).
	// Tier 2: proxy match via the vendor-membership list; when several
	// match, prefer the one whose primary vendor equals the requested name.
	var proxy *Provider
	for i := range providers {
		p := &providers[i]
		if !p.Proxy || !p.Enabled {
			continue
		}
		if p.Vendor == vendor {
			proxy = p
			break
		}
		if p.Serves(vendor) && proxy == nil {
			proxy = p
		}
	}
	if proxy != nil {
		key, _, err := r.pickKey(ctx, userID, vendor, proxy.ID)
		if err != nil {
			return task.VendorContext{}, err
		}
		baseURL, err := r.baseURL(ctx, proxy, vendor)
		if err != nil {
			return task.VendorContext{}, err
		}
		return task.VendorContext{BaseURL: baseURL, APIKey: key, ViaProxyVendor: proxy.Vendor}, nil
	}

	// Tier 3: non-proxy provider + token lookup.
	var provider *Provider
	for i := range providers {
		p := &providers[i]
		if !p.Proxy && p.Enabled && p.Serves(vendor) {
			provider = p
			break
		}
	}

	key, tokenProviderID, keyErr := r.pickKey(ctx, userID, vendor, "")
	if keyErr != nil {
		// Environment fallback applies only to specific vendors and only
		// when the user configured nothing for this vendor.
		if provider == nil {
			if envVar, ok := envFallbacks[vendor]; ok {
				if v := r.env(envVar); v != "" {
					baseURL, err := r.baseURL(ctx, nil, vendor)
					if err != nil {
						return task.VendorContext{}, err
					}
					return task.VendorContext{BaseURL: baseURL, APIKey: v}, nil
				}
			}
		}
		return task.VendorContext{}, keyErr
	}

	// Adopt the shared token's provider when the user has no row of their
	// own for this vendor.
	if provider == nil && tokenProviderID != "" {
		provider, err = r.store.Provider(ctx, tokenProviderID)
		if err != nil {
			return task.VendorContext{}, err
		}
	}

	baseURL, err := r.baseURL(ctx, provider, vendor)
	if err != nil {
		return task.VendorContext{}, err
	}
	return task.VendorContext{BaseURL: baseURL, APIKey: key}, nil
}

// pickKey selects an API key for vendor: a token owned by the caller wins;
// otherwise a shared token outside its cooldown window. When providerID is
// non-empty only tokens bound to that provider are considered.
func (r *Resolver) pickKey(ctx context.Context, userID, vendor, providerID string) (key, tokenProviderID string, err error) {
	tokens, err := r.store.TokensByVendor(ctx, vendor)
	if err != nil {
		return "", "", err
	}
	now := r.now()

	var shared *Token
	for i := range tokens {
		t := &tokens[i]
		if providerID != "" && t.ProviderID != providerID {
			continue
		}
		if t.OwnerID == userID && !t.Shared {
			return t.Key, t.ProviderID, nil
		}
		if t.Shared && !t.InCooldown(now) && shared == nil {
			shared = t
		}
	}
	if shared != nil {
		return shared.Key, shared.ProviderID, nil
	}
	return "", "", &ConfigError{Vendor: vendor, Reason: "no usable API key (no owned token, shared pool exhausted or cooling down)"}
}

// baseURL mirrors the key precedence: explicit provider base URL → shared
// base-URL row → vendor hardcoded default → fail.
func (r *Resolver) baseURL(ctx context.Context, provider *Provider, vendor string) (string, error) {
	if provider != nil && provider.BaseURL != "" {
		return provider.BaseURL, nil
	}
	sb, err := r.store.SharedBase(ctx, vendor)
	if err != nil {
		return "", err
	}
	if sb != nil && sb.Enabled && sb.BaseURL != "" {
		return sb.BaseURL, nil
	}
	if u, ok := defaultBaseURLs[vendor]; ok {
		return u, nil
	}
	return "", &ConfigError{Vendor: vendor, Reason: "no base URL configured"}
}
