package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS vendor_providers (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    vendor     TEXT NOT NULL,
    vendors    TEXT[] NOT NULL DEFAULT '{}',
    base_url   TEXT NOT NULL DEFAULT '',
    proxy      BOOLEAN NOT NULL DEFAULT FALSE,
    enabled    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vendor_tokens (
    id             TEXT PRIMARY KEY,
    owner_id       TEXT NOT NULL,
    provider_id    TEXT NOT NULL DEFAULT '',
    vendor         TEXT NOT NULL,
    key            TEXT NOT NULL,
    shared         BOOLEAN NOT NULL DEFAULT FALSE,
    cooldown_until TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vendor_shared_bases (
    vendor   TEXT PRIMARY KEY,
    base_url TEXT NOT NULL,
    enabled  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_vendor_providers_owner ON vendor_providers(owner_id);
CREATE INDEX IF NOT EXISTS idx_vendor_tokens_vendor   ON vendor_tokens(vendor);
`

// CreateSchema creates the vendor configuration tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the vendor configuration tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS vendor_tokens, vendor_providers, vendor_shared_bases CASCADE;`)
	return err
}
