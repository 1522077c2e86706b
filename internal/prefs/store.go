package prefs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"priceguard/internal/models"
)

// Store manages the one-row-per-user notification toggles.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreate returns the user's preferences, creating the all-enabled
// default row on first access.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*models.UserPreferences, error) {
	p, err := s.get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p = models.DefaultPreferences(userID)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, email_alerts_enabled, daily_summary_enabled, watchlist_alerts_enabled, price_alerts_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, p.EmailAlertsEnabled, p.DailySummaryEnabled,
		p.WatchlistAlertsEnabled, p.PriceAlertsEnabled, p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// A concurrent first access may have won the insert; re-read either way.
	return s.get(ctx, userID)
}

// Update applies the non-nil toggles. Unknown fields never reach here;
// the handler decodes into this struct directly.
type Update struct {
	EmailAlertsEnabled     *bool `json:"email_alerts_enabled,omitempty"`
	DailySummaryEnabled    *bool `json:"daily_summary_enabled,omitempty"`
	WatchlistAlertsEnabled *bool `json:"watchlist_alerts_enabled,omitempty"`
	PriceAlertsEnabled     *bool `json:"price_alerts_enabled,omitempty"`
}

// Apply merges an update into the stored row and returns the result.
func (s *Store) Apply(ctx context.Context, userID string, upd Update) (*models.UserPreferences, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.EmailAlertsEnabled != nil {
		p.EmailAlertsEnabled = *upd.EmailAlertsEnabled
	}
	if upd.DailySummaryEnabled != nil {
		p.DailySummaryEnabled = *upd.DailySummaryEnabled
	}
	if upd.WatchlistAlertsEnabled != nil {
		p.WatchlistAlertsEnabled = *upd.WatchlistAlertsEnabled
	}
	if upd.PriceAlertsEnabled != nil {
		p.PriceAlertsEnabled = *upd.PriceAlertsEnabled
	}
	p.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE user_preferences
		SET email_alerts_enabled = $1, daily_summary_enabled = $2,
		    watchlist_alerts_enabled = $3, price_alerts_enabled = $4, updated_at = $5
		WHERE user_id = $6`,
		p.EmailAlertsEnabled, p.DailySummaryEnabled,
		p.WatchlistAlertsEnabled, p.PriceAlertsEnabled, p.UpdatedAt, userID,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListDailySummaryUsers returns the users who still have the daily
// summary email enabled.
func (s *Store) ListDailySummaryUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM user_preferences
		WHERE daily_summary_enabled AND email_alerts_enabled
		ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *Store) get(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var p models.UserPreferences
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, email_alerts_enabled, daily_summary_enabled, watchlist_alerts_enabled, price_alerts_enabled, updated_at
		FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(
		&p.UserID, &p.EmailAlertsEnabled, &p.DailySummaryEnabled,
		&p.WatchlistAlertsEnabled, &p.PriceAlertsEnabled, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
