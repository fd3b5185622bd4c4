package push

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultStatusTopic = "order-status"

	defaultReadBackoff = time.Second
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaFeed reads order updates from a topic and publishes them to the hub.
type KafkaFeed struct {
	hub    Publisher
	reader messageReader
	logger *zap.Logger
	// backoff is the pause after a failed read before the next attempt
	backoff time.Duration
}

type KafkaFeedConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// FromStart makes a new consumer group begin at the oldest retained
	// update instead of the newest.
	FromStart bool
}

func NewKafkaFeed(hub Publisher, logger *zap.Logger, cfg KafkaFeedConfig) *KafkaFeed {
	if cfg.Topic == "" {
		cfg.Topic = DefaultStatusTopic
	}
	start := kafka.LastOffset
	if cfg.FromStart {
		start = kafka.FirstOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: start,
		MaxBytes:    10e6, // 10MB
	})
	return &KafkaFeed{hub: hub, reader: reader, logger: logger, backoff: defaultReadBackoff}
}

func (f *KafkaFeed) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.processMessage(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.backoff):
			}
		}
	}
}

func (f *KafkaFeed) Close() {
	if err := f.reader.Close(); err != nil {
		f.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

// processMessage returns an error only when the read itself failed.
func (f *KafkaFeed) processMessage(ctx context.Context) error {
	m, err := f.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		f.logger.Error("error reading order update", zap.Error(err))
		return err
	}

	order, err := decodeOrder(m.Value)
	if err != nil {
		f.logger.Warn("skipping order update",
			zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	f.logger.Debug("order update received",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)))
	f.hub.Publish(order)
	return nil
}
