package prefs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var prefCols = []string{
	"user_id", "email_alerts_enabled", "daily_summary_enabled",
	"watchlist_alerts_enabled", "price_alerts_enabled", "updated_at",
}

func TestGetOrCreateMaterializesDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM user_preferences").
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO user_preferences").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM user_preferences").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(prefCols).
			AddRow("user-1", true, true, true, true, time.Now().UTC()))

	s := New(db)
	p, err := s.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, p.EmailAlertsEnabled)
	assert.True(t, p.DailySummaryEnabled)
	assert.True(t, p.WatchlistAlertsEnabled)
	assert.True(t, p.PriceAlertsEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateReturnsExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM user_preferences").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(prefCols).
			AddRow("user-1", false, true, true, false, time.Now().UTC()))

	s := New(db)
	p, err := s.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, p.EmailAlertsEnabled)
	assert.False(t, p.PriceAlertsEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMergesOnlyProvidedToggles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM user_preferences").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(prefCols).
			AddRow("user-1", true, true, true, true, time.Now().UTC()))
	mock.ExpectExec("UPDATE user_preferences").
		WillReturnResult(sqlmock.NewResult(0, 1))

	off := false
	s := New(db)
	p, err := s.Apply(context.Background(), "user-1", Update{DailySummaryEnabled: &off})
	require.NoError(t, err)
	assert.False(t, p.DailySummaryEnabled)
	assert.True(t, p.EmailAlertsEnabled, "untouched toggles keep their value")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDailySummaryUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT user_id FROM user_preferences").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).
			AddRow("user-1").AddRow("user-3"))

	s := New(db)
	users, err := s.ListDailySummaryUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-3"}, users)
}
