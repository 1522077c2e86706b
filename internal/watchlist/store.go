package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotGetter looks up the current cached snapshot for an asset; used
// to seed the reference price when a watch is created.
type SnapshotGetter interface {
	Get(ctx context.Context, assetID int64) (*models.AssetSnapshot, error)
}

// Store owns watchlist rows. Users mutate entries through Add/Remove/
// UpdateThreshold; the refresh pipeline touches only the denormalized
// display fields and, on a crossing, the reference price.
type Store struct {
	db    *sql.DB
	cache SnapshotGetter
}

func New(db *sql.DB, cache SnapshotGetter) *Store {
	return &Store{db: db, cache: cache}
}

const entryColumns = `user_id, asset_id, symbol, name, logo_url, alert_percent, reference_price, created_at`

// Add subscribes a user to an asset. The reference price starts at the
// asset's current cached price, so percent change accumulates from the
// moment of watching. Returns ErrConflict when the pair already exists
// and ErrAssetNotFound when the asset has never been cached.
func (s *Store) Add(ctx context.Context, userID string, assetID int64, threshold decimal.Decimal) (*models.WatchlistEntry, error) {
	if !threshold.IsPositive() {
		return nil, models.ErrInvalidThreshold
	}

	snap, err := s.cache.Get(ctx, assetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAssetNotFound
		}
		return nil, err
	}

	entry := &models.WatchlistEntry{
		UserID:         userID,
		AssetID:        assetID,
		Symbol:         snap.Symbol,
		Name:           snap.Name,
		LogoURL:        snap.LogoURL,
		AlertPercent:   threshold,
		ReferencePrice: snap.Price,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO watchlist (user_id, asset_id, symbol, name, logo_url, alert_percent, reference_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.UserID, entry.AssetID, entry.Symbol, entry.Name, entry.LogoURL,
		entry.AlertPercent, entry.ReferencePrice, entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("insert watchlist entry: %w", err)
	}

	logger.Log.Info("Watchlist entry added",
		zap.String("user_id", userID),
		zap.Int64("asset_id", assetID),
		zap.String("threshold", threshold.String()),
	)
	return entry, nil
}

// Remove deletes one (user, asset) subscription.
func (s *Store) Remove(ctx context.Context, userID string, assetID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND asset_id = $2`, userID, assetID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateThreshold changes the alert percentage for one entry without
// touching the reference price, so accumulated drift is preserved.
func (s *Store) UpdateThreshold(ctx context.Context, userID string, assetID int64, threshold decimal.Decimal) error {
	if !threshold.IsPositive() {
		return models.ErrInvalidThreshold
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE watchlist SET alert_percent = $1 WHERE user_id = $2 AND asset_id = $3`,
		threshold, userID, assetID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListFor returns a user's entries ordered by asset id for deterministic
// output.
func (s *Store) ListFor(ctx context.Context, userID string) ([]*models.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM watchlist WHERE user_id = $1 ORDER BY asset_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListForAsset returns every entry watching one asset, ordered by user id.
// Used by the evaluator after each accepted snapshot upsert.
func (s *Store) ListForAsset(ctx context.Context, assetID int64) ([]*models.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM watchlist WHERE asset_id = $1 ORDER BY user_id ASC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SyncDisplayFields rewrites the denormalized symbol/name/logo on every
// entry watching the asset. Runs inside the snapshot upsert transaction.
// Idempotent, and never alters threshold or reference price.
func (s *Store) SyncDisplayFields(ctx context.Context, tx *sql.Tx, snap models.AssetSnapshot) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE watchlist SET symbol = $1, name = $2, logo_url = $3 WHERE asset_id = $4`,
		snap.Symbol, snap.Name, snap.LogoURL, snap.AssetID)
	return err
}

// ResetReference advances one entry's reference price after an alert
// fired, inside the caller's transaction so the alert append and the
// reset commit together.
func (s *Store) ResetReference(ctx context.Context, tx *sql.Tx, userID string, assetID int64, price decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE watchlist SET reference_price = $1 WHERE user_id = $2 AND asset_id = $3`,
		price, userID, assetID)
	return err
}

func scanEntries(rows *sql.Rows) ([]*models.WatchlistEntry, error) {
	var entries []*models.WatchlistEntry
	for rows.Next() {
		var e models.WatchlistEntry
		if err := rows.Scan(
			&e.UserID, &e.AssetID, &e.Symbol, &e.Name, &e.LogoURL,
			&e.AlertPercent, &e.ReferencePrice, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
