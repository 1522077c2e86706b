package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"priceguard/internal/auth"
	"priceguard/internal/logger"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type AddWatchRequest struct {
	AssetID      int64            `json:"asset_id"`
	AlertPercent *decimal.Decimal `json:"alert_percent,omitempty"`
}

type UpdateWatchRequest struct {
	AlertPercent decimal.Decimal `json:"alert_percent"`
}

// defaultAlertPercent applies when a watch request omits the threshold.
var defaultAlertPercent = decimal.NewFromInt(5)

// WatchlistHandler handles all watchlist operations based on the HTTP method
func (s *Server) WatchlistHandler(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromRequest(r)
	if principal.UserID == "" {
		http.Error(w, "Missing identity header", http.StatusUnauthorized)
		return
	}

	// URL pattern: /watchlist or /watchlist/{assetID}
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) <= 2 || pathParts[2] == "" {
		switch r.Method {
		case http.MethodGet:
			s.browseWatchlist(w, r, principal)
		case http.MethodPost:
			s.addWatch(w, r, principal)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	assetID, err := strconv.ParseInt(pathParts[2], 10, 64)
	if err != nil {
		http.Error(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		s.updateWatch(w, r, principal, assetID)
	case http.MethodDelete:
		s.removeWatch(w, r, principal, assetID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) watchlistCachePrefix(userID string) string {
	return fmt.Sprintf("watchlist_%s_", userID)
}

func (s *Server) browseWatchlist(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "BrowseWatchlistHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	// An explicit user_id must match the caller; entries are private.
	ownerID := principal.UserID
	if requested := r.URL.Query().Get("user_id"); requested != "" {
		ownerID = requested
	}
	if err := principal.Require(ownerID); err != nil {
		writeError(w, err)
		return
	}

	cacheKey := generateCacheKey(r, s.watchlistCachePrefix(ownerID))

	cached, err := s.Cache.Get(ctx, cacheKey, "/watchlist", s.Instance)
	if err == nil && cached != "" {
		logger.Log.Info("Cache hit for /watchlist",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cached))
		return
	}

	entries, err := s.Watchlist.ListFor(ctx, ownerID)
	if err != nil {
		logger.Log.Error("Failed to fetch watchlist",
			zap.String("trace_id", traceID),
			zap.String("user_id", ownerID),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch watchlist", http.StatusInternalServerError)
		return
	}

	response := Response{
		Message: "Watchlist retrieved successfully",
		Data:    entries,
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

func (s *Server) addWatch(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "AddWatchHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req AddWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AssetID == 0 {
		http.Error(w, "Missing required field: asset_id", http.StatusBadRequest)
		return
	}

	threshold := defaultAlertPercent
	if req.AlertPercent != nil {
		threshold = *req.AlertPercent
	}

	entry, err := s.Watchlist.Add(ctx, principal.UserID, req.AssetID, threshold)
	if err != nil {
		logger.Log.Warn("Failed to add watchlist entry",
			zap.String("trace_id", traceID),
			zap.String("user_id", principal.UserID),
			zap.Int64("asset_id", req.AssetID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	s.Cache.InvalidateByPrefix(ctx, s.watchlistCachePrefix(principal.UserID))

	// Confirmation email is best effort; the entry is already committed.
	if s.Notify != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.Notify.SendWatchlistAdded(ctx, *entry); err != nil {
				logger.Log.Warn("Failed to send watchlist confirmation",
					zap.String("user_id", entry.UserID),
					zap.Int64("asset_id", entry.AssetID),
					zap.Error(err),
				)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, Response{
		Message: "Watchlist entry created successfully",
		Data:    entry,
	})
}

func (s *Server) updateWatch(w http.ResponseWriter, r *http.Request, principal auth.Principal, assetID int64) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "UpdateWatchHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req UpdateWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.Watchlist.UpdateThreshold(ctx, principal.UserID, assetID, req.AlertPercent); err != nil {
		logger.Log.Warn("Failed to update watchlist entry",
			zap.String("trace_id", traceID),
			zap.String("user_id", principal.UserID),
			zap.Int64("asset_id", assetID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	s.Cache.InvalidateByPrefix(ctx, s.watchlistCachePrefix(principal.UserID))

	writeJSON(w, http.StatusOK, Response{
		Message: "Watchlist entry updated successfully",
	})
}

func (s *Server) removeWatch(w http.ResponseWriter, r *http.Request, principal auth.Principal, assetID int64) {
	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "RemoveWatchHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	if err := s.Watchlist.Remove(ctx, principal.UserID, assetID); err != nil {
		logger.Log.Warn("Failed to remove watchlist entry",
			zap.String("trace_id", traceID),
			zap.String("user_id", principal.UserID),
			zap.Int64("asset_id", assetID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	s.Cache.InvalidateByPrefix(ctx, s.watchlistCachePrefix(principal.UserID))

	writeJSON(w, http.StatusOK, Response{
		Message: "Watchlist entry removed successfully",
	})
}
