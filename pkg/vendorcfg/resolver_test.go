package vendorcfg_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ananyarao/canvasflow/pkg/vendorcfg"
)

const user = "user-1"

// ─── Proxy tiers ──────────────────────────────────────────────────────────────

func TestResolve_ProxyDirectMatch(t *testing.T) {
	s := vendorcfg.NewMemStore()
	s.AddProvider(vendorcfg.Provider{
		ID: "p1", OwnerID: user, Vendor: "kling", Proxy: true, Enabled: true,
		BaseURL: "https://proxy.example.com/kling",
	})
	s.AddToken(vendorcfg.Token{ID: "t1", OwnerID: user, ProviderID: "p1", Vendor: "kling", Key: "sk-proxy"})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "kling")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.APIKey != "sk-proxy" {
		t.Errorf("key = %q, want sk-proxy", vctx.APIKey)
	}
	if vctx.BaseURL != "https://proxy.example.com/kling" {
		t.Errorf("baseURL = %q, want proxy base", vctx.BaseURL)
	}
	if vctx.ViaProxyVendor != "kling" {
		t.Errorf("viaProxyVendor = %q, want kling", vctx.ViaProxyVendor)
	}
}

func TestResolve_ProxyMembershipList(t *testing.T) {
	// The proxy's primary vendor is different; minimax appears only in its
	// membership list.
	s := vendorcfg.NewMemStore()
	s.AddProvider(vendorcfg.Provider{
		ID: "p1", OwnerID: user, Vendor: "kling", Vendors: []string{"minimax"},
		Proxy: true, Enabled: true, BaseURL: "https://proxy.example.com",
	})
	s.AddToken(vendorcfg.Token{ID: "t1", OwnerID: user, ProviderID: "p1", Vendor: "minimax", Key: "sk-proxy"})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "minimax")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.ViaProxyVendor != "kling" {
		t.Errorf("viaProxyVendor = %q, want kling (the proxy's primary vendor)", vctx.ViaProxyVendor)
	}
}

func TestResolve_DisabledProxyIsSkipped(t *testing.T) {
	s := vendorcfg.NewMemStore()
	s.AddProvider(vendorcfg.Provider{
		ID: "p1", OwnerID: user, Vendor: "kling", Proxy: true, Enabled: false,
	})
	s.AddToken(vendorcfg.Token{ID: "t1", OwnerID: user, Vendor: "kling", Key: "sk-direct"})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "kling")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.ViaProxyVendor != "" {
		t.Errorf("viaProxyVendor = %q, want empty (proxy disabled)", vctx.ViaProxyVendor)
	}
}

// ─── Token tiers ──────────────────────────────────────────────────────────────

func TestResolve_OwnedTokenBeatsShared(t *testing.T) {
	s := vendorcfg.NewMemStore()
	s.AddToken(vendorcfg.Token{ID: "t1", Vendor: "kling", Key: "sk-shared", Shared: true})
	s.AddToken(vendorcfg.Token{ID: "t2", OwnerID: user, Vendor: "kling", Key: "sk-mine"})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "kling")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.APIKey != "sk-mine" {
		t.Errorf("key = %q, want the owned token", vctx.APIKey)
	}
}

func TestResolve_SharedTokenInCooldownIsSkipped(t *testing.T) {
	s := vendorcfg.NewMemStore()
	s.AddToken(vendorcfg.Token{
		ID: "t1", Vendor: "kling", Key: "sk-resting", Shared: true,
		CooldownUntil: time.Now().Add(time.Hour),
	})
	s.AddToken(vendorcfg.Token{ID: "t2", Vendor: "kling", Key: "sk-fresh", Shared: true})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "kling")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.APIKey != "sk-fresh" {
		t.Errorf("key = %q, want the non-cooldown shared token", vctx.APIKey)
	}
}

func TestResolve_AdoptsSharedTokenProvider(t *testing.T) {
	// The user has no provider row; the shared token's provider supplies the
	// base URL.
	s := vendorcfg.NewMemStore()
	s.AddProvider(vendorcfg.Provider{
		ID: "p-pool", OwnerID: "someone-else", Vendor: "flux", Enabled: true,
		BaseURL: "https://pool.example.com/flux",
	})
	s.AddToken(vendorcfg.Token{ID: "t1", ProviderID: "p-pool", Vendor: "flux", Key: "sk-pool", Shared: true})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "flux")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.BaseURL != "https://pool.example.com/flux" {
		t.Errorf("baseURL = %q, want the adopted provider's", vctx.BaseURL)
	}
}

// ─── Environment fallback ─────────────────────────────────────────────────────

func TestResolve_EnvFallbackWhenNothingConfigured(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	s := vendorcfg.NewMemStore()

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "openai")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.APIKey != "sk-env" {
		t.Errorf("key = %q, want the env fallback", vctx.APIKey)
	}
	if vctx.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %q, want the hardcoded default", vctx.BaseURL)
	}
}

func TestResolve_EnvFallbackNotUsedWhenProviderConfigured(t *testing.T) {
	// A configured provider with no usable token is a configuration error;
	// it must not silently degrade to the env var.
	t.Setenv("OPENAI_API_KEY", "sk-env")
	s := vendorcfg.NewMemStore()
	s.AddProvider(vendorcfg.Provider{ID: "p1", OwnerID: user, Vendor: "openai", Enabled: true})

	_, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "openai")
	var ce *vendorcfg.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestResolve_NoEnvFallbackForVideoVendors(t *testing.T) {
	s := vendorcfg.NewMemStore()
	_, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "kling")
	var ce *vendorcfg.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if ce.Vendor != "kling" {
		t.Errorf("vendor = %q, want kling", ce.Vendor)
	}
}

// ─── Base URL precedence ──────────────────────────────────────────────────────

func TestResolve_SharedBaseBeatsHardcodedDefault(t *testing.T) {
	s := vendorcfg.NewMemStore()
	s.AddToken(vendorcfg.Token{ID: "t1", OwnerID: user, Vendor: "minimax", Key: "sk-mine"})
	s.AddSharedBase(vendorcfg.SharedBase{Vendor: "minimax", BaseURL: "https://shared.example.com", Enabled: true})

	vctx, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "minimax")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if vctx.BaseURL != "https://shared.example.com" {
		t.Errorf("baseURL = %q, want the shared base row", vctx.BaseURL)
	}
}

func TestResolve_UnknownVendorWithTokenButNoBaseURL(t *testing.T) {
	s := vendorcfg.NewMemStore()
	s.AddToken(vendorcfg.Token{ID: "t1", OwnerID: user, Vendor: "newvendor", Key: "sk"})

	_, err := vendorcfg.NewResolver(s).Resolve(t.Context(), user, "newvendor")
	var ce *vendorcfg.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError for missing base URL", err)
	}
}
