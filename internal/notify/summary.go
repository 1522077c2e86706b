package notify

import (
	"context"
	"fmt"
	"html/template"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"go.uber.org/zap"
)

// SummaryUsers lists the users subscribed to the daily summary.
type SummaryUsers interface {
	ListDailySummaryUsers(ctx context.Context) ([]string, error)
}

// WatchlistReader returns a user's entries.
type WatchlistReader interface {
	ListFor(ctx context.Context, userID string) ([]*models.WatchlistEntry, error)
}

// SnapshotReader returns the live snapshot for one asset.
type SnapshotReader interface {
	Get(ctx context.Context, assetID int64) (*models.AssetSnapshot, error)
}

// SummarySender emails each subscribed user a snapshot of their
// watchlist. Scheduled daily; users with an empty watchlist are skipped.
type SummarySender struct {
	users        SummaryUsers
	watchlist    WatchlistReader
	snapshots    SnapshotReader
	directory    Directory
	mailer       Mailer
	dashboardURL string
}

func NewSummarySender(users SummaryUsers, watchlist WatchlistReader, snapshots SnapshotReader, directory Directory, mailer Mailer, dashboardURL string) *SummarySender {
	return &SummarySender{
		users:        users,
		watchlist:    watchlist,
		snapshots:    snapshots,
		directory:    directory,
		mailer:       mailer,
		dashboardURL: dashboardURL,
	}
}

// SendAll runs one summary pass. A failure for one user is logged and
// does not stop the rest.
func (s *SummarySender) SendAll(ctx context.Context) {
	users, err := s.users.ListDailySummaryUsers(ctx)
	if err != nil {
		logger.Log.Error("Failed to list daily summary users", zap.Error(err))
		return
	}

	sent := 0
	for _, userID := range users {
		if err := s.sendOne(ctx, userID); err != nil {
			logger.Log.Warn("Daily summary failed for user",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	logger.Log.Info("Daily summary pass complete",
		zap.Int("subscribed", len(users)),
		zap.Int("sent", sent),
	)
}

func (s *SummarySender) sendOne(ctx context.Context, userID string) error {
	entries, err := s.watchlist.ListFor(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	rows := make([]summaryRow, 0, len(entries))
	for _, entry := range entries {
		snap, err := s.snapshots.Get(ctx, entry.AssetID)
		if err != nil {
			// Entry references an asset the cache no longer carries;
			// show it without live figures rather than dropping it.
			rows = append(rows, summaryRow{
				Name: entry.Name, Symbol: entry.Symbol,
				Price: "-", Change: "-", Color: template.CSS("#6b7280"),
			})
			continue
		}
		color := colorIncrease
		if snap.Change24h < 0 {
			color = colorDecrease
		}
		rows = append(rows, summaryRow{
			Name:   snap.Name,
			Symbol: snap.Symbol,
			Price:  snap.Price.StringFixed(2),
			Change: fmt.Sprintf("%+.2f", snap.Change24h),
			Color:  template.CSS(color),
		})
	}

	to, err := s.directory.EmailFor(ctx, userID)
	if err != nil {
		return err
	}

	body, err := renderDailySummary(rows, s.dashboardURL)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, to, "Your Daily Watchlist Summary", body)
}
