package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultStatusChannel = "order-status"

// RedisFeed relays order updates from a pub/sub channel to the hub.
type RedisFeed struct {
	hub     Publisher
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisFeed(hub Publisher, client *redis.Client, channel string, logger *zap.Logger) *RedisFeed {
	if channel == "" {
		channel = DefaultStatusChannel
	}
	return &RedisFeed{hub: hub, client: client, channel: channel, logger: logger}
}

// Run subscribes and blocks until ctx is done. It returns an error only if
// the initial subscription fails.
func (f *RedisFeed) Run(ctx context.Context) error {
	ps := f.client.Subscribe(ctx, f.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", f.channel, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			order, err := decodeOrder([]byte(msg.Payload))
			if err != nil {
				f.logger.Warn("skipping order update", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			f.hub.Publish(order)
		}
	}
}
