package alert

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventCols = []string{
	"id", "user_id", "asset_id", "symbol", "name", "logo_url",
	"trigger_price", "percent_change", "direction", "created_at",
}

func TestListForDefaultsPageSize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(eventCols).
		AddRow("ev-2", "user-1", int64(1), "BTC", "Bitcoin", "", "106", "6", "increase", now).
		AddRow("ev-1", "user-1", int64(1), "BTC", "Bitcoin", "", "95", "-5", "decrease", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM alerts_log").
		WithArgs("user-1", sqlmock.AnyArg(), defaultPageSize).
		WillReturnRows(rows)

	l := NewLog(db)
	events, err := l.ListFor(context.Background(), "user-1", 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-2", events[0].ID, "newest event comes first")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForWithCursor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	before := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM alerts_log").
		WithArgs("user-1", before, 10).
		WillReturnRows(sqlmock.NewRows(eventCols))

	l := NewLog(db)
	events, err := l.ListFor(context.Background(), "user-1", 10, before)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasRecentExcludesDeliveredEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1", int64(1), "ev-new", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	l := NewLog(db)
	recent, err := l.HasRecent(context.Background(), "user-1", 1, "ev-new", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, recent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
