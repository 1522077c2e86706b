package cache

import (
	"context"

	"priceguard/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AlertsChannel carries emitted alert events to the SSE fan-out.
const AlertsChannel = "price_alerts"

// Publish sends a message to a Redis channel.
func (c *Client) Publish(ctx context.Context, channel, message string) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscriber is a confirmed subscription to one Redis channel.
type Subscriber struct {
	pubsub *redis.PubSub
}

// Subscribe opens a subscription and waits for the confirmation frame.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscriber, error) {
	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}
	logger.Log.Info("Subscribed to Redis channel", zap.String("channel", channel))
	return &Subscriber{pubsub: pubsub}, nil
}

// ReceiveMessage blocks for the next message.
func (s *Subscriber) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	return s.pubsub.ReceiveMessage(ctx)
}

func (s *Subscriber) Close() error {
	return s.pubsub.Close()
}
