package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"priceguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toplistBody = `{
	"Data": {
		"LIST": [
			{"ID": 1, "SYMBOL": "BTC", "NAME": "Bitcoin", "PRICE_USD": 65000.5,
			 "CIRCULATING_MKT_CAP_USD": 1.2e12, "PRICE_USD_LAST_UPDATE_TS": 1756400000},
			{"ID": 2, "SYMBOL": "ETH", "PRICE_USD": 3500,
			 "PRICE_USD_LAST_UPDATE_TS": 1756400000},
			{"SYMBOL": "NOID", "PRICE_USD": 1, "PRICE_USD_LAST_UPDATE_TS": 1756400000},
			{"ID": 4, "SYMBOL": "", "PRICE_USD": 1, "PRICE_USD_LAST_UPDATE_TS": 1756400000},
			{"ID": 5, "SYMBOL": "NOPRICE", "PRICE_USD_LAST_UPDATE_TS": 1756400000},
			{"ID": 6, "SYMBOL": "NEG", "PRICE_USD": -2, "PRICE_USD_LAST_UPDATE_TS": 1756400000},
			{"ID": 7, "SYMBOL": "NOTS", "PRICE_USD": 3}
		]
	}
}`

func TestFetchTopAssetsSkipsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/asset/v1/top/list", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, toplistBody)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 100)
	snaps, skipped, err := c.FetchTopAssets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, skipped)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(1), snaps[0].AssetID)
	assert.Equal(t, "Bitcoin", snaps[0].Name)
	assert.Equal(t, "ETH", snaps[1].Name, "missing name falls back to symbol")
	assert.Equal(t, time.Unix(1756400000, 0).UTC(), snaps[0].PriceUpdatedAt)
}

func TestFetchTopAssetsAllMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Data": {"LIST": [{"SYMBOL": "NOID", "PRICE_USD": 1}]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 100)
	_, skipped, err := c.FetchTopAssets(context.Background())
	assert.ErrorIs(t, err, models.ErrNoValidRecords)
	assert.Equal(t, 1, skipped)
}

func TestFetchTopAssetsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Data": {"LIST": []}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 100)
	_, _, err := c.FetchTopAssets(context.Background())
	assert.ErrorIs(t, err, models.ErrNoValidRecords)
}

func TestFetchTopAssetsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 100)
	_, _, err := c.FetchTopAssets(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.True(t, statusErr.Temporary())
}

func TestStatusErrorClassification(t *testing.T) {
	assert.True(t, (&StatusError{Code: 500}).Temporary())
	assert.True(t, (&StatusError{Code: 503}).Temporary())
	assert.True(t, (&StatusError{Code: 429}).Temporary())
	assert.False(t, (&StatusError{Code: 401}).Temporary())
	assert.False(t, (&StatusError{Code: 404}).Temporary())
}
