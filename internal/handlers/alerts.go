package handlers

import (
	"net/http"
	"strconv"
	"time"

	"priceguard/internal/auth"
	"priceguard/internal/logger"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// AlertHistoryHandler returns the caller's alert log, newest first.
// Pagination: ?limit= caps the page, ?before= (RFC 3339) fetches events
// strictly older than the given instant.
func (s *Server) AlertHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := auth.FromRequest(r)
	if principal.UserID == "" {
		http.Error(w, "Missing identity header", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "AlertHistoryHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid before timestamp, expected RFC 3339", http.StatusBadRequest)
			return
		}
		before = parsed
	}

	events, err := s.Alerts.ListFor(ctx, principal.UserID, limit, before)
	if err != nil {
		logger.Log.Error("Failed to fetch alert history",
			zap.String("trace_id", traceID),
			zap.String("user_id", principal.UserID),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch alert history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert history retrieved successfully",
		Data:    events,
	})
}
