package handlers

import (
	"encoding/json"
	"net/http"

	"priceguard/internal/auth"
	"priceguard/internal/logger"
	"priceguard/internal/prefs"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// PreferencesHandler reads or updates the caller's notification toggles.
// A GET for a user with no stored row materializes the all-enabled
// defaults first.
func (s *Server) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromRequest(r)
	if principal.UserID == "" {
		http.Error(w, "Missing identity header", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "PreferencesHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	switch r.Method {
	case http.MethodGet:
		current, err := s.Prefs.GetOrCreate(ctx, principal.UserID)
		if err != nil {
			logger.Log.Error("Failed to fetch preferences",
				zap.String("trace_id", traceID),
				zap.String("user_id", principal.UserID),
				zap.Error(err),
			)
			http.Error(w, "Failed to fetch preferences", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, Response{
			Message: "Preferences retrieved successfully",
			Data:    current,
		})

	case http.MethodPut, http.MethodPatch:
		var upd prefs.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			logger.Log.Error("Failed to parse request body",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		updated, err := s.Prefs.Apply(ctx, principal.UserID, upd)
		if err != nil {
			logger.Log.Error("Failed to update preferences",
				zap.String("trace_id", traceID),
				zap.String("user_id", principal.UserID),
				zap.Error(err),
			)
			http.Error(w, "Failed to update preferences", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, Response{
			Message: "Preferences updated successfully",
			Data:    updated,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
