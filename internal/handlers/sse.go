package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"priceguard/internal/auth"
	"priceguard/internal/cache"
	"priceguard/internal/logger"
	"priceguard/internal/models"

	"go.uber.org/zap"
)

// SSE clients, keyed by delivery channel. Each client only receives the
// events addressed to its own user.
var (
	clients = make(map[chan models.AlertEvent]string)
	mu      sync.Mutex
)

var alertSubscriber *cache.Subscriber

// InitSSE subscribes to the Redis alerts channel and starts the fan-out
// loop. Call once at startup, after the Redis client is ready.
func (s *Server) InitSSE(ctx context.Context) error {
	sub, err := s.Cache.Subscribe(ctx, cache.AlertsChannel)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", cache.AlertsChannel, err)
	}
	alertSubscriber = sub

	go listenForAlerts()
	return nil
}

// listenForAlerts continuously receives published alert events from Redis
// and forwards each to the owning user's connected clients.
func listenForAlerts() {
	logger.Log.Info("Starting to listen for alerts from Redis")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		msg, err := alertSubscriber.ReceiveMessage(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue // idle channel, keep waiting
			}
			logger.Log.Error("Error receiving message from Redis", zap.Error(err))
			time.Sleep(1 * time.Second)
			continue
		}

		var event models.AlertEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Log.Error("Error unmarshaling alert event", zap.Error(err))
			continue
		}

		broadcastToClients(event)
	}
}

// StreamAlertsHandler holds an SSE connection open and streams the
// caller's alert events as they are emitted.
func (s *Server) StreamAlertsHandler(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromRequest(r)
	if principal.UserID == "" {
		http.Error(w, "Missing identity header", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan models.AlertEvent, 10)

	mu.Lock()
	clients[clientChan] = principal.UserID
	clientCount := len(clients)
	mu.Unlock()

	logger.Log.Info("New SSE client connected",
		zap.String("user_id", principal.UserID),
		zap.Int("total_clients", clientCount),
	)

	defer func() {
		mu.Lock()
		delete(clients, clientChan)
		clientCount := len(clients)
		mu.Unlock()
		logger.Log.Info("SSE client disconnected", zap.Int("total_clients", clientCount))
	}()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-clientChan:
			eventData, err := json.Marshal(event)
			if err != nil {
				logger.Log.Error("Failed to marshal alert event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", eventData)
			flusher.Flush()
		}
	}
}

// broadcastToClients delivers an event to the clients of its owning user.
func broadcastToClients(event models.AlertEvent) {
	mu.Lock()
	defer mu.Unlock()

	for clientChan, userID := range clients {
		if userID != event.UserID {
			continue
		}
		select {
		case clientChan <- event:
		default:
			logger.Log.Warn("Alert dropped due to slow client",
				zap.String("user_id", userID))
		}
	}
}
