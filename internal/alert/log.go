package alert

import (
	"context"
	"database/sql"
	"time"

	"priceguard/internal/models"
)

const defaultPageSize = 50

// Log is the append-only record of emitted alert events. Nothing updates
// or deletes rows here except the user cascade delete.
type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append writes one event inside the caller's transaction.
func (l *Log) Append(ctx context.Context, tx *sql.Tx, event models.AlertEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO alerts_log (id, user_id, asset_id, symbol, name, logo_url, trigger_price, percent_change, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.UserID, event.AssetID, event.Symbol, event.Name, event.LogoURL,
		event.TriggerPrice, event.PercentChange, event.Direction, event.CreatedAt,
	)
	return err
}

// ListFor pages through a user's alert history, newest first. A zero
// before timestamp means "from now"; a non-positive limit uses the
// default page size.
func (l *Log) ListFor(ctx context.Context, userID string, limit int, before time.Time) ([]*models.AlertEvent, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, asset_id, symbol, name, logo_url, trigger_price, percent_change, direction, created_at
		FROM alerts_log
		WHERE user_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		var e models.AlertEvent
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.AssetID, &e.Symbol, &e.Name, &e.LogoURL,
			&e.TriggerPrice, &e.PercentChange, &e.Direction, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// HasRecent reports whether another alert for the same (user, asset) was
// logged inside the lookback window, excluding the event being delivered.
// Used by the email dispatcher to suppress duplicate deliveries; emission
// itself is never suppressed.
func (l *Log) HasRecent(ctx context.Context, userID string, assetID int64, excludeEventID string, lookback time.Duration) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts_log
			WHERE user_id = $1 AND asset_id = $2 AND id <> $3 AND created_at >= $4
		)`,
		userID, assetID, excludeEventID, time.Now().UTC().Add(-lookback),
	).Scan(&exists)
	return exists, err
}
