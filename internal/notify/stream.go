package notify

import (
	"context"
	"encoding/json"

	"priceguard/internal/cache"
	"priceguard/internal/logger"
	"priceguard/internal/models"

	"go.uber.org/zap"
)

// StreamDispatcher publishes alert events to the Redis channel feeding
// connected SSE clients. Web instances subscribe independently, so an
// event reaches clients on every instance.
type StreamDispatcher struct {
	cache *cache.Client
}

func NewStreamDispatcher(c *cache.Client) *StreamDispatcher {
	return &StreamDispatcher{cache: c}
}

func (s *StreamDispatcher) DispatchPriceAlert(ctx context.Context, event models.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.cache.Publish(ctx, cache.AlertsChannel, string(payload)); err != nil {
		return err
	}
	logger.Log.Debug("Alert published to stream",
		zap.String("event_id", event.ID),
		zap.String("symbol", event.Symbol),
	)
	return nil
}
