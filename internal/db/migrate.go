package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		chat_handle  TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL DEFAULT 'user',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transfer_requests (
		id               BIGSERIAL PRIMARY KEY,
		owner_id         UUID NOT NULL REFERENCES users(id),
		recipient_phone  TEXT NOT NULL,
		amount           BIGINT NOT NULL CHECK (amount > 0),
		operator_code    TEXT NOT NULL,
		status           TEXT NOT NULL CHECK (status IN ('pending', 'delayed', 'processing', 'success', 'failed')),
		execute_after    TIMESTAMPTZ NOT NULL,
		carrier_response TEXT,
		claimed_by       TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		executed_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_requests_status_created
		ON transfer_requests (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_requests_owner_created
		ON transfer_requests (owner_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_requests_owner_recipient
		ON transfer_requests (owner_id, recipient_phone, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_requests_delayed_due
		ON transfer_requests (execute_after) WHERE status = 'delayed'`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_requests_processing_updated
		ON transfer_requests (updated_at) WHERE status = 'processing'`,
	`CREATE TABLE IF NOT EXISTS operator_prefixes (
		prefix        TEXT PRIMARY KEY,
		operator_code TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO operator_prefixes (prefix, operator_code) VALUES
		('032', 'ORANGE'), ('037', 'ORANGE'), ('033', 'AIRTEL'), ('034', 'TELMA'), ('038', 'TELMA')
		ON CONFLICT (prefix) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		idempotency_key TEXT PRIMARY KEY,
		request_hash    TEXT NOT NULL,
		method          TEXT NOT NULL,
		path            TEXT NOT NULL,
		response_status INTEGER NOT NULL DEFAULT 0,
		response_body   BYTEA NOT NULL DEFAULT ''::bytea,
		content_type    TEXT NOT NULL DEFAULT 'application/json',
		in_progress     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          BIGSERIAL PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		prev_state  TEXT,
		next_state  TEXT,
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log (entity_type, entity_id)`,
}

// Migrate creates tables, indexes and seed rows. Every statement is safe to re-run.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	zap.L().Info("migrations completed", zap.Int("steps", len(schema)))
	return nil
}
