package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// NewPgxPool connects a pgx pool with a bounded connect timeout.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Schema is applied at startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sites (
    title         TEXT PRIMARY KEY,
    iframe_url    TEXT NOT NULL,
    merchant_link TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS code_families (
    id         TEXT PRIMARY KEY,
    label      TEXT NOT NULL DEFAULT '',
    site       TEXT NOT NULL REFERENCES sites(title) ON DELETE CASCADE,
    duration   INT  NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS child_codes (
    id           TEXT PRIMARY KEY,
    family_id    TEXT NOT NULL REFERENCES code_families(id) ON DELETE CASCADE,
    hash         TEXT NOT NULL UNIQUE,
    used         BOOLEAN NOT NULL DEFAULT FALSE,
    used_ip      TEXT,
    activated_at TIMESTAMPTZ,
    expires_at   TIMESTAMPTZ,
    duration     INT,
    position     INT NOT NULL
);

CREATE TABLE IF NOT EXISTS redemption_log (
    id           TEXT PRIMARY KEY,
    family_id    TEXT NOT NULL,
    child_id     TEXT NOT NULL,
    ip           TEXT NOT NULL,
    site         TEXT NOT NULL DEFAULT '',
    activated_at TIMESTAMPTZ NOT NULL,
    duration     INT NOT NULL
);
`

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
