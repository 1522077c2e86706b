package handlers

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"priceguard/internal/alert"
	"priceguard/internal/cache"
	"priceguard/internal/notify"
	"priceguard/internal/pricecache"
	"priceguard/internal/prefs"
	"priceguard/internal/tracing"
	"priceguard/internal/watchlist"
)

// Server bundles the stores behind the HTTP API. Instance tags cache
// metrics so multiple replicas can share one dashboard.
type Server struct {
	DB        *sql.DB
	Cache     *cache.Client
	Prices    *pricecache.Cache
	Watchlist *watchlist.Store
	Alerts    *alert.Log
	Prefs     *prefs.Store
	Notify    *notify.EmailDispatcher
	Instance  string
}

const responseCacheTTL = 30 // seconds

var tracerName = tracing.TracerName

// Routes registers all API endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/prices", s.PricesHandler)
	mux.HandleFunc("/prices/", s.PricesHandler)
	mux.HandleFunc("/watchlist", s.WatchlistHandler)
	mux.HandleFunc("/watchlist/", s.WatchlistHandler)
	mux.HandleFunc("/alerts/history", s.AlertHistoryHandler)
	mux.HandleFunc("/alerts/stream", s.StreamAlertsHandler)
	mux.HandleFunc("/preferences", s.PreferencesHandler)
	mux.HandleFunc("/admin/users/", s.AdminUsersHandler)
	mux.HandleFunc("/health", s.HealthHandler)
}

// generateCacheKey hashes the sorted query string so equivalent requests
// share one cached response regardless of parameter order.
func generateCacheKey(r *http.Request, prefix string) string {
	queryParams := r.URL.Query()
	var keys []string
	for k := range queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var queryString []string
	for _, k := range keys {
		queryString = append(queryString, fmt.Sprintf("%s=%s", k, strings.Join(queryParams[k], ",")))
	}
	joinedParams := strings.Join(queryString, "&")

	hash := sha256.Sum256([]byte(joinedParams))
	return prefix + hex.EncodeToString(hash[:8])
}
