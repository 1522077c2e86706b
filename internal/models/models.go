package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetSnapshot is the latest cached market state for one tracked asset.
// AssetID is the upstream API's stable integer identifier.
type AssetSnapshot struct {
	AssetID        int64           `json:"asset_id" db:"asset_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Name           string          `json:"name" db:"name"`
	LogoURL        string          `json:"logo_url" db:"logo_url"`
	Price          decimal.Decimal `json:"price" db:"price"`
	MarketCap      float64         `json:"market_cap" db:"market_cap"`
	Volume24h      float64         `json:"volume_24h" db:"volume_24h"`
	Change24h      float64         `json:"change_24h" db:"change_24h"`
	PriceUpdatedAt time.Time       `json:"price_updated_at" db:"price_updated_at"`
	CachedAt       time.Time       `json:"cached_at" db:"cached_at"`
}

// WatchlistEntry is a user's subscription to an asset with a personal
// alert threshold. Symbol/Name/LogoURL are denormalized copies of the
// snapshot's display fields, rewritten on every accepted refresh.
type WatchlistEntry struct {
	UserID         string          `json:"user_id" db:"user_id"`
	AssetID        int64           `json:"asset_id" db:"asset_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Name           string          `json:"name" db:"name"`
	LogoURL        string          `json:"logo_url" db:"logo_url"`
	AlertPercent   decimal.Decimal `json:"alert_percent" db:"alert_percent"`
	ReferencePrice decimal.Decimal `json:"reference_price" db:"reference_price"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// AlertDirection encodes the sign of a crossing.
type AlertDirection string

const (
	DirectionIncrease AlertDirection = "increase"
	DirectionDecrease AlertDirection = "decrease"
)

// AlertEvent records one threshold crossing. Immutable once written.
type AlertEvent struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	AssetID       int64           `json:"asset_id" db:"asset_id"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Name          string          `json:"name" db:"name"`
	LogoURL       string          `json:"logo_url" db:"logo_url"`
	TriggerPrice  decimal.Decimal `json:"trigger_price" db:"trigger_price"`
	PercentChange decimal.Decimal `json:"percent_change" db:"percent_change"`
	Direction     AlertDirection  `json:"direction" db:"direction"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// UserPreferences holds per-user notification toggles. All default to true.
type UserPreferences struct {
	UserID                 string    `json:"user_id" db:"user_id"`
	EmailAlertsEnabled     bool      `json:"email_alerts_enabled" db:"email_alerts_enabled"`
	DailySummaryEnabled    bool      `json:"daily_summary_enabled" db:"daily_summary_enabled"`
	WatchlistAlertsEnabled bool      `json:"watchlist_alerts_enabled" db:"watchlist_alerts_enabled"`
	PriceAlertsEnabled     bool      `json:"price_alerts_enabled" db:"price_alerts_enabled"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences returns the all-enabled preference row for a user.
func DefaultPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		UserID:                 userID,
		EmailAlertsEnabled:     true,
		DailySummaryEnabled:    true,
		WatchlistAlertsEnabled: true,
		PriceAlertsEnabled:     true,
		UpdatedAt:              time.Now().UTC(),
	}
}
