package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusError is a non-2xx upstream response. 5xx and 429 are worth
// retrying; anything else in the 4xx range is not.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client pulls the ranked asset list from the market-data API.
type Client struct {
	baseURL string
	apiKey  string
	limit   int
	http    *http.Client
}

func NewClient(baseURL, apiKey string, limit int) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		limit:   limit,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type toplistResponse struct {
	Data struct {
		List []assetRecord `json:"LIST"`
	} `json:"Data"`
}

// Field names follow the upstream's screaming-caps convention. Pointer
// fields distinguish "absent" from zero so malformed records can be
// detected and skipped.
type assetRecord struct {
	ID             *int64   `json:"ID"`
	Symbol         string   `json:"SYMBOL"`
	Name           string   `json:"NAME"`
	LogoURL        string   `json:"LOGO_URL"`
	PriceUSD       *float64 `json:"PRICE_USD"`
	MarketCapUSD   float64  `json:"CIRCULATING_MKT_CAP_USD"`
	Volume24hUSD   float64  `json:"SPOT_MOVING_24_HOUR_QUOTE_VOLUME_USD"`
	Change24hPct   float64  `json:"SPOT_MOVING_24_HOUR_CHANGE_PERCENTAGE_USD"`
	PriceUpdatedTS int64    `json:"PRICE_USD_LAST_UPDATE_TS"`
}

// FetchTopAssets pulls one page of the ranked toplist and maps each record
// to a snapshot. Malformed records are skipped and returned in the second
// value; a response with zero valid records is a full failure.
func (c *Client) FetchTopAssets(ctx context.Context) ([]models.AssetSnapshot, int, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(c.limit))
	q.Set("sort_by", "CIRCULATING_MKT_CAP_USD")
	q.Set("sort_direction", "DESC")
	q.Set("groups", "ID,BASIC,PRICE,MKT_CAP,VOLUME,CHANGE")
	q.Set("toplist_quote_asset", "USD")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/asset/v1/top/list?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, &StatusError{Code: resp.StatusCode}
	}

	var payload toplistResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decode upstream response: %w", err)
	}

	snapshots := make([]models.AssetSnapshot, 0, len(payload.Data.List))
	skipped := 0
	for _, rec := range payload.Data.List {
		snap, ok := rec.toSnapshot()
		if !ok {
			skipped++
			logger.Log.Warn("Skipping malformed upstream record",
				zap.String("symbol", rec.Symbol),
			)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	if len(snapshots) == 0 {
		return nil, skipped, models.ErrNoValidRecords
	}
	return snapshots, skipped, nil
}

func (r assetRecord) toSnapshot() (models.AssetSnapshot, bool) {
	if r.ID == nil || r.Symbol == "" || r.PriceUSD == nil || *r.PriceUSD < 0 || r.PriceUpdatedTS <= 0 {
		return models.AssetSnapshot{}, false
	}
	name := r.Name
	if name == "" {
		name = r.Symbol
	}
	return models.AssetSnapshot{
		AssetID:        *r.ID,
		Symbol:         r.Symbol,
		Name:           name,
		LogoURL:        r.LogoURL,
		Price:          decimal.NewFromFloat(*r.PriceUSD),
		MarketCap:      r.MarketCapUSD,
		Volume24h:      r.Volume24hUSD,
		Change24h:      r.Change24hPct,
		PriceUpdatedAt: time.Unix(r.PriceUpdatedTS, 0).UTC(),
	}, true
}
