package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// PricesHandler routes the public price-cache endpoints:
//
//	GET /prices          top assets by market cap, plus cache staleness
//	GET /prices/search   ?q= substring match on symbol or name
//	GET /prices/{id}     single snapshot
func (s *Server) PricesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) <= 2 || pathParts[2] == "" {
		s.browsePrices(w, r)
		return
	}
	if pathParts[2] == "search" {
		s.searchPrices(w, r)
		return
	}
	s.getPrice(w, r, pathParts[2])
}

// priceListing is the browse payload. Stale tells the client the whole
// cache has fallen behind the refresh window, not just one asset.
type priceListing struct {
	Assets []*models.AssetSnapshot `json:"assets"`
	Stale  bool                    `json:"stale"`
}

func (s *Server) browsePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "BrowsePricesHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()
	cacheKey := generateCacheKey(r, "browse_prices_")

	cached, err := s.Cache.Get(ctx, cacheKey, "/prices", s.Instance)
	if err == nil && cached != "" {
		logger.Log.Info("Cache hit for /prices",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cached))
		return
	}

	snapshots, err := s.Prices.List(ctx)
	if err != nil {
		logger.Log.Error("Failed to list price snapshots",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch prices", http.StatusInternalServerError)
		return
	}

	stale, err := s.Prices.IsStale(ctx)
	if err != nil {
		logger.Log.Warn("Failed to compute cache staleness",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		stale = true
	}

	response := Response{
		Message: "Prices retrieved successfully",
		Data:    priceListing{Assets: snapshots, Stale: stale},
	}

	respBytes, err := json.Marshal(response)
	if err != nil {
		logger.Log.Error("Failed to encode JSON response",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
		return
	}

	if cacheErr := s.Cache.Set(ctx, cacheKey, string(respBytes), responseCacheTTL*time.Second); cacheErr != nil {
		logger.Log.Warn("Failed to store response in cache",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
			zap.Error(cacheErr),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(respBytes)
}

func (s *Server) searchPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "SearchPricesHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Missing required query parameter: q", http.StatusBadRequest)
		return
	}

	snapshots, err := s.Prices.Search(ctx, query)
	if err != nil {
		logger.Log.Error("Failed to search price snapshots",
			zap.String("trace_id", traceID),
			zap.String("query", query),
			zap.Error(err),
		)
		http.Error(w, "Failed to search prices", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Search completed successfully",
		Data:    snapshots,
	})
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request, rawID string) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "GetPriceHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	assetID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		http.Error(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	snapshot, err := s.Prices.Get(ctx, assetID)
	if err != nil {
		logger.Log.Warn("Failed to fetch price snapshot",
			zap.String("trace_id", traceID),
			zap.Int64("asset_id", assetID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Price retrieved successfully",
		Data:    snapshot,
	})
}
