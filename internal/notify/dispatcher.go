package notify

import (
	"context"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"go.uber.org/zap"
)

// Preferences exposes the single read the dispatcher needs.
type Preferences interface {
	GetOrCreate(ctx context.Context, userID string) (*models.UserPreferences, error)
}

// Directory resolves a user id to an email address. Backed by the auth
// service's admin API; authentication itself lives outside this system.
type Directory interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// RecentChecker asks the alert log whether the user was already alerted
// for this asset recently, so repeated crossings inside the window do not
// repeat the email.
type RecentChecker interface {
	HasRecent(ctx context.Context, userID string, assetID int64, excludeEventID string, lookback time.Duration) (bool, error)
}

// DedupWindow is how long a delivered alert suppresses further emails for
// the same (user, asset).
const DedupWindow = 24 * time.Hour

// EmailDispatcher turns alert events into emails, honoring the user's
// notification toggles. Events are already logged by the time they reach
// the dispatcher; a delivery failure or a disabled toggle changes nothing
// about the audit trail.
type EmailDispatcher struct {
	prefs        Preferences
	directory    Directory
	recent       RecentChecker
	mailer       Mailer
	dashboardURL string
}

func NewEmailDispatcher(prefs Preferences, directory Directory, recent RecentChecker, mailer Mailer, dashboardURL string) *EmailDispatcher {
	return &EmailDispatcher{
		prefs:        prefs,
		directory:    directory,
		recent:       recent,
		mailer:       mailer,
		dashboardURL: dashboardURL,
	}
}

// DispatchPriceAlert delivers one crossing to the owning user, unless
// price alerts are disabled or an alert for this asset already went out
// inside the dedup window.
func (d *EmailDispatcher) DispatchPriceAlert(ctx context.Context, event models.AlertEvent) error {
	p, err := d.prefs.GetOrCreate(ctx, event.UserID)
	if err != nil {
		return err
	}
	if !p.EmailAlertsEnabled || !p.PriceAlertsEnabled {
		logger.Log.Debug("Price alert email disabled for user",
			zap.String("user_id", event.UserID))
		return nil
	}

	dup, err := d.recent.HasRecent(ctx, event.UserID, event.AssetID, event.ID, DedupWindow)
	if err != nil {
		return err
	}
	if dup {
		logger.Log.Debug("Suppressing duplicate alert email",
			zap.String("user_id", event.UserID),
			zap.Int64("asset_id", event.AssetID),
		)
		return nil
	}

	to, err := d.directory.EmailFor(ctx, event.UserID)
	if err != nil {
		return err
	}

	subject, body, err := renderPriceAlert(event, d.dashboardURL)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, to, subject, body)
}

// SendWatchlistAdded confirms a new subscription, gated by the watchlist
// toggle.
func (d *EmailDispatcher) SendWatchlistAdded(ctx context.Context, entry models.WatchlistEntry) error {
	p, err := d.prefs.GetOrCreate(ctx, entry.UserID)
	if err != nil {
		return err
	}
	if !p.EmailAlertsEnabled || !p.WatchlistAlertsEnabled {
		return nil
	}

	to, err := d.directory.EmailFor(ctx, entry.UserID)
	if err != nil {
		return err
	}

	subject, body, err := renderWatchlistAdded(entry, d.dashboardURL)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, to, subject, body)
}
