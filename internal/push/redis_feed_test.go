package push

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// announce publishes an order update the way the kitchen service does.
func announce(t *testing.T, client *redis.Client, channel string, order domain.Order) {
	payload, err := json.Marshal(order)
	require.NoError(t, err)
	require.NoError(t, client.Publish(context.Background(), channel, payload).Err())
}

func TestRedisFeed_RelaysToHub(t *testing.T) {
	client, mr := setupTestRedis(t)
	hub := NewHub()
	feed := NewRedisFeed(hub, client, "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	id := uuid.New()
	got := make(chan domain.Order, 1)
	c := hub.NewClient()
	c.Subscribe(id, func(o domain.Order) { got <- o })

	mr.Publish(DefaultStatusChannel, "garbage")
	announce(t, client, DefaultStatusChannel, domain.Order{ID: id, Status: domain.OrderStatusReady})

	select {
	case o := <-got:
		assert.Equal(t, domain.OrderStatusReady, o.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("order update not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestRedisFeed_SubscribeFailure(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	feed := NewRedisFeed(NewHub(), client, "orders", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, feed.Run(ctx))
}
