// Package postgres implements vendorcfg.Store over PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ananyarao/canvasflow/pkg/vendorcfg"
)

// PGStore implements vendorcfg.Store backed by a pgx connection pool.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a PGStore over the given pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ProvidersByOwner(ctx context.Context, ownerID string) ([]vendorcfg.Provider, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, vendor, vendors, base_url, proxy, enabled
		   FROM vendor_providers WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("vendorcfg: list providers: %w", err)
	}
	defer rows.Close()

	providers := []vendorcfg.Provider{}
	for rows.Next() {
		var p vendorcfg.Provider
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Vendor, &p.Vendors, &p.BaseURL, &p.Proxy, &p.Enabled); err != nil {
			return nil, fmt.Errorf("vendorcfg: scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vendorcfg: rows providers: %w", err)
	}
	return providers, nil
}

func (s *PGStore) Provider(ctx context.Context, id string) (*vendorcfg.Provider, error) {
	var p vendorcfg.Provider
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, vendor, vendors, base_url, proxy, enabled
		   FROM vendor_providers WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Vendor, &p.Vendors, &p.BaseURL, &p.Proxy, &p.Enabled)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vendorcfg: get provider: %w", err)
	}
	return &p, nil
}

func (s *PGStore) TokensByVendor(ctx context.Context, vendor string) ([]vendorcfg.Token, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, provider_id, vendor, key, shared, cooldown_until
		   FROM vendor_tokens WHERE vendor = $1 ORDER BY created_at`, vendor)
	if err != nil {
		return nil, fmt.Errorf("vendorcfg: list tokens: %w", err)
	}
	defer rows.Close()

	tokens := []vendorcfg.Token{}
	for rows.Next() {
		var t vendorcfg.Token
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.ProviderID, &t.Vendor, &t.Key, &t.Shared, &t.CooldownUntil); err != nil {
			return nil, fmt.Errorf("vendorcfg: scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vendorcfg: rows tokens: %w", err)
	}
	return tokens, nil
}

func (s *PGStore) SharedBase(ctx context.Context, vendor string) (*vendorcfg.SharedBase, error) {
	var b vendorcfg.SharedBase
	err := s.db.QueryRow(ctx,
		`SELECT vendor, base_url, enabled
		   FROM vendor_shared_bases WHERE vendor = $1 AND enabled`, vendor,
	).Scan(&b.Vendor, &b.BaseURL, &b.Enabled)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vendorcfg: get shared base: %w", err)
	}
	return &b, nil
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return err != nil && err.Error() == "no rows in result set"
}
