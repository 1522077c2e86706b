package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Table DDL. assets is written only by the ingestion path; watchlist,
// alerts_log and user_preferences are keyed by the owning user. alerts_log
// is append-only (no update path exists in code).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS assets (
		asset_id         BIGINT PRIMARY KEY,
		symbol           TEXT NOT NULL,
		name             TEXT NOT NULL,
		logo_url         TEXT NOT NULL DEFAULT '',
		price            NUMERIC(24, 8) NOT NULL CHECK (price >= 0),
		market_cap       DOUBLE PRECISION NOT NULL DEFAULT 0,
		volume_24h       DOUBLE PRECISION NOT NULL DEFAULT 0,
		change_24h       DOUBLE PRECISION NOT NULL DEFAULT 0,
		price_updated_at TIMESTAMPTZ NOT NULL,
		cached_at        TIMESTAMPTZ NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS watchlist (
		user_id         UUID NOT NULL,
		asset_id        BIGINT NOT NULL REFERENCES assets (asset_id),
		symbol          TEXT NOT NULL,
		name            TEXT NOT NULL,
		logo_url        TEXT NOT NULL DEFAULT '',
		alert_percent   NUMERIC(10, 4) NOT NULL CHECK (alert_percent > 0),
		reference_price NUMERIC(24, 8) NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, asset_id)
	);`,

	`CREATE TABLE IF NOT EXISTS alerts_log (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL,
		asset_id       BIGINT NOT NULL,
		symbol         TEXT NOT NULL,
		name           TEXT NOT NULL,
		logo_url       TEXT NOT NULL DEFAULT '',
		trigger_price  NUMERIC(24, 8) NOT NULL,
		percent_change NUMERIC(10, 4) NOT NULL,
		direction      TEXT NOT NULL CHECK (direction IN ('increase', 'decrease')),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,

	`CREATE INDEX IF NOT EXISTS alerts_log_user_created_idx
		ON alerts_log (user_id, created_at DESC);`,

	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id                  UUID PRIMARY KEY,
		email_alerts_enabled     BOOLEAN NOT NULL DEFAULT TRUE,
		daily_summary_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		watchlist_alerts_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		price_alerts_enabled     BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
}

// Migrate applies the schema statements in order. Each statement is
// idempotent, so re-running on startup is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// DeleteUser removes every row owned by the user: watchlist entries,
// alert history and preferences, in one transaction. Other users' rows
// are untouched.
func DeleteUser(ctx context.Context, db *sql.DB, userID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM watchlist WHERE user_id = $1`,
		`DELETE FROM alerts_log WHERE user_id = $1`,
		`DELETE FROM user_preferences WHERE user_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("cascade delete for user %s: %w", userID, err)
		}
	}

	return tx.Commit()
}
