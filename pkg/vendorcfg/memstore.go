package vendorcfg

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for the CLI and tests.
type MemStore struct {
	mu          sync.RWMutex
	providers   []Provider
	tokens      []Token
	sharedBases []SharedBase
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// AddProvider appends a provider row.
func (s *MemStore) AddProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

// AddToken appends a token row.
func (s *MemStore) AddToken(t Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, t)
}

// AddSharedBase appends a shared base-URL row.
func (s *MemStore) AddSharedBase(b SharedBase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedBases = append(s.sharedBases, b)
}

func (s *MemStore) ProvidersByOwner(_ context.Context, ownerID string) ([]Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Provider
	for _, p := range s.providers {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemStore) Provider(_ context.Context, id string) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) TokensByVendor(_ context.Context, vendor string) ([]Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Token
	for _, t := range s.tokens {
		if t.Vendor == vendor {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemStore) SharedBase(_ context.Context, vendor string) (*SharedBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.sharedBases {
		if b.Vendor == vendor && b.Enabled {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}
