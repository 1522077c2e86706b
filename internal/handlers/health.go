package handlers

import (
	"net/http"

	"priceguard/internal/logger"

	"go.uber.org/zap"
)

type healthStatus struct {
	Database   string `json:"database"`
	Redis      string `json:"redis"`
	PriceCache string `json:"price_cache"`
}

// HealthHandler reports dependency reachability and whether the price
// cache is inside its freshness window. A stale cache degrades the
// status but does not fail the check; the API still serves reads.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	status := healthStatus{Database: "ok", Redis: "ok", PriceCache: "fresh"}
	healthy := true

	if err := s.DB.PingContext(ctx); err != nil {
		logger.Log.Error("Health check: database unreachable", zap.Error(err))
		status.Database = "unreachable"
		healthy = false
	}

	if err := s.Cache.Redis().Ping(ctx).Err(); err != nil {
		logger.Log.Error("Health check: redis unreachable", zap.Error(err))
		status.Redis = "unreachable"
		healthy = false
	}

	if status.Database == "ok" {
		stale, err := s.Prices.IsStale(ctx)
		if err != nil {
			status.PriceCache = "unknown"
		} else if stale {
			status.PriceCache = "stale"
		}
	} else {
		status.PriceCache = "unknown"
	}

	code := http.StatusOK
	message := "Service healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		message = "Service degraded"
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, code, Response{Message: message, Data: status})
}
