package notify

import (
	"context"
	"testing"

	"priceguard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummaryUsers struct {
	users []string
}

func (f *fakeSummaryUsers) ListDailySummaryUsers(ctx context.Context) ([]string, error) {
	return f.users, nil
}

type fakeWatchlist struct {
	entries map[string][]*models.WatchlistEntry
}

func (f *fakeWatchlist) ListFor(ctx context.Context, userID string) ([]*models.WatchlistEntry, error) {
	return f.entries[userID], nil
}

type fakeSnapshotStore struct {
	snaps map[int64]*models.AssetSnapshot
}

func (f *fakeSnapshotStore) Get(ctx context.Context, assetID int64) (*models.AssetSnapshot, error) {
	snap, ok := f.snaps[assetID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return snap, nil
}

func TestSendAllSkipsEmptyWatchlists(t *testing.T) {
	mailer := &recordingMailer{}
	s := NewSummarySender(
		&fakeSummaryUsers{users: []string{"user-1", "user-2"}},
		&fakeWatchlist{entries: map[string][]*models.WatchlistEntry{
			"user-1": {{UserID: "user-1", AssetID: 1, Symbol: "BTC", Name: "Bitcoin"}},
		}},
		&fakeSnapshotStore{snaps: map[int64]*models.AssetSnapshot{
			1: {AssetID: 1, Symbol: "BTC", Name: "Bitcoin",
				Price: decimal.RequireFromString("65000"), Change24h: 1.5},
		}},
		fakeDirectory{}, mailer, "https://app.example.com",
	)

	s.SendAll(context.Background())

	require.Len(t, mailer.sent, 1, "user-2 has no entries, so only user-1 gets a summary")
	assert.Equal(t, []string{"user-1@example.com"}, mailer.to)
	assert.Equal(t, "Your Daily Watchlist Summary", mailer.sent[0])
}

func TestSendOneKeepsEntriesWithoutSnapshots(t *testing.T) {
	entries := []*models.WatchlistEntry{
		{UserID: "user-1", AssetID: 1, Symbol: "BTC", Name: "Bitcoin"},
		{UserID: "user-1", AssetID: 404, Symbol: "GONE", Name: "Delisted"},
	}
	rowsRendered, err := renderDailySummary([]summaryRow{
		{Name: "Bitcoin", Symbol: "BTC", Price: "65000.00", Change: "+1.50"},
		{Name: "Delisted", Symbol: "GONE", Price: "-", Change: "-"},
	}, "")
	require.NoError(t, err)
	assert.Contains(t, rowsRendered, "Delisted")

	mailer := &recordingMailer{}
	s := NewSummarySender(
		&fakeSummaryUsers{users: []string{"user-1"}},
		&fakeWatchlist{entries: map[string][]*models.WatchlistEntry{"user-1": entries}},
		&fakeSnapshotStore{snaps: map[int64]*models.AssetSnapshot{
			1: {AssetID: 1, Symbol: "BTC", Name: "Bitcoin",
				Price: decimal.RequireFromString("65000"), Change24h: 1.5},
		}},
		fakeDirectory{}, mailer, "",
	)

	s.SendAll(context.Background())
	require.Len(t, mailer.sent, 1, "a missing snapshot must not drop the whole summary")
}
