package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"go.uber.org/zap"
)

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Log.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError maps sentinel errors to user-facing statuses. Anything
// unrecognized is an internal failure: logged, hidden from the caller.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrConflict):
		http.Error(w, "already watching this asset", http.StatusConflict)
	case errors.Is(err, models.ErrAssetNotFound):
		http.Error(w, "asset not found in price cache", http.StatusNotFound)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidThreshold):
		http.Error(w, "alert threshold must be greater than zero", http.StatusBadRequest)
	case errors.Is(err, models.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		logger.Log.Error("Request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
