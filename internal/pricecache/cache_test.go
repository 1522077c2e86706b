package pricecache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"priceguard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshotCols = []string{
	"asset_id", "symbol", "name", "logo_url", "price",
	"market_cap", "volume_24h", "change_24h", "price_updated_at", "cached_at",
}

func testSnapshot(ts time.Time) models.AssetSnapshot {
	return models.AssetSnapshot{
		AssetID:        1,
		Symbol:         "BTC",
		Name:           "Bitcoin",
		LogoURL:        "https://example.com/btc.png",
		Price:          decimal.NewFromInt(65000),
		MarketCap:      1.2e12,
		Volume24h:      3.4e10,
		Change24h:      1.5,
		PriceUpdatedAt: ts,
	}
}

func TestUpsertAcceptsNewerTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snap := testSnapshot(time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price_updated_at FROM assets WHERE asset_id = \\$1 FOR UPDATE").
		WithArgs(snap.AssetID).
		WillReturnRows(sqlmock.NewRows([]string{"price_updated_at"}).
			AddRow(snap.PriceUpdatedAt.Add(-time.Minute)))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var synced, evaluated bool
	c := New(db, 5*time.Minute)
	c.OnChange(
		func(ctx context.Context, tx *sql.Tx, s models.AssetSnapshot) error {
			synced = true
			return nil
		},
		func(ctx context.Context, s models.AssetSnapshot) {
			evaluated = true
		},
	)

	require.NoError(t, c.Upsert(context.Background(), snap))
	assert.True(t, synced, "display fields should sync inside the transaction")
	assert.True(t, evaluated, "evaluation should run after commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDropsNonAdvancingTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Now().UTC()
	snap := testSnapshot(ts)

	mock.ExpectBegin()
	// Stored timestamp equals the incoming one: equal does not advance.
	mock.ExpectQuery("SELECT price_updated_at FROM assets WHERE asset_id = \\$1 FOR UPDATE").
		WithArgs(snap.AssetID).
		WillReturnRows(sqlmock.NewRows([]string{"price_updated_at"}).AddRow(ts))
	mock.ExpectRollback()

	var evaluated bool
	c := New(db, 5*time.Minute)
	c.OnChange(nil, func(ctx context.Context, s models.AssetSnapshot) {
		evaluated = true
	})

	err = c.Upsert(context.Background(), snap)
	assert.ErrorIs(t, err, models.ErrStaleWrite)
	assert.False(t, evaluated, "dropped write must not trigger evaluation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFirstWriteForAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snap := testSnapshot(time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price_updated_at FROM assets WHERE asset_id = \\$1 FOR UPDATE").
		WithArgs(snap.AssetID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO assets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := New(db, 5*time.Minute)
	require.NoError(t, c.Upsert(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectsNegativePrice(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snap := testSnapshot(time.Now().UTC())
	snap.Price = decimal.NewFromInt(-1)

	c := New(db, 5*time.Minute)
	assert.Error(t, c.Upsert(context.Background(), snap))
}

func TestUpsertSyncFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snap := testSnapshot(time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price_updated_at FROM assets WHERE asset_id = \\$1 FOR UPDATE").
		WithArgs(snap.AssetID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO assets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	var evaluated bool
	c := New(db, 5*time.Minute)
	c.OnChange(
		func(ctx context.Context, tx *sql.Tx, s models.AssetSnapshot) error {
			return assert.AnError
		},
		func(ctx context.Context, s models.AssetSnapshot) {
			evaluated = true
		},
	)

	err = c.Upsert(context.Background(), snap)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, evaluated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsStale(t *testing.T) {
	tests := []struct {
		name   string
		latest interface{}
		want   bool
	}{
		{"empty cache", nil, true},
		{"fresh write", time.Now().UTC(), false},
		{"old write", time.Now().UTC().Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery("SELECT MAX\\(cached_at\\) FROM assets").
				WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(tt.latest))

			c := New(db, 5*time.Minute)
			stale, err := c.IsStale(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, stale)
		})
	}
}

func TestGetUnknownAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM assets WHERE asset_id = \\$1").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	c := New(db, 5*time.Minute)
	_, err = c.Get(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListOrdersByMarketCap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(snapshotCols).
		AddRow(int64(1), "BTC", "Bitcoin", "", "65000", 1.2e12, 3.4e10, 1.5, now, now).
		AddRow(int64(2), "ETH", "Ethereum", "", "3500", 4.2e11, 1.1e10, -0.8, now, now)
	mock.ExpectQuery("SELECT (.+) FROM assets ORDER BY market_cap DESC").
		WillReturnRows(rows)

	c := New(db, 5*time.Minute)
	snaps, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "BTC", snaps[0].Symbol)
	assert.Equal(t, "ETH", snaps[1].Symbol)
}
