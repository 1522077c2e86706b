package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"priceguard/internal/database"
	"priceguard/internal/logger"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// ServiceKey authenticates service-to-service calls on the admin
// endpoints. Set from configuration at startup; empty disables them.
var ServiceKey string

// AdminUsersHandler handles user lifecycle callbacks from the identity
// provider. DELETE /admin/users/{id} removes every row the user owns:
// watchlist entries, alert history, and preferences.
func (s *Server) AdminUsersHandler(w http.ResponseWriter, r *http.Request) {
	if !serviceAuthorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	pathParts := strings.Split(r.URL.Path, "/")
	// URL pattern: /admin/users/{id}
	if len(pathParts) < 4 || pathParts[3] == "" {
		http.Error(w, "Missing user id", http.StatusBadRequest)
		return
	}
	userID := pathParts[3]

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "DeleteUserHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	if err := database.DeleteUser(ctx, s.DB, userID); err != nil {
		logger.Log.Error("Failed to delete user data",
			zap.String("trace_id", traceID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		http.Error(w, "Failed to delete user data", http.StatusInternalServerError)
		return
	}

	logger.Log.Info("Deleted all data for user",
		zap.String("trace_id", traceID),
		zap.String("user_id", userID),
	)

	writeJSON(w, http.StatusOK, Response{
		Message: "User data deleted successfully",
	})
}

func serviceAuthorized(r *http.Request) bool {
	if ServiceKey == "" {
		return false
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(ServiceKey)) == 1
}
