package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/gateway"
)

// Redis fans out through Redis pub/sub so every instance sees every change.
type Redis struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedis(client *redis.Client, prefix string, log *zap.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, log: log}
}

func (r *Redis) channel(topic string) string {
	if r.prefix == "" {
		return topic
	}
	return r.prefix + ":" + topic
}

func (r *Redis) Publish(ctx context.Context, topic, payload string) error {
	if err := r.client.Publish(ctx, r.channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, topic string, fn func(string)) (gateway.CancelFunc, error) {
	pubsub := r.client.Subscribe(ctx, r.channel(topic))

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to redis channel %s: %w", topic, err)
	}

	ch := pubsub.Channel()
	done := make(chan struct{})

	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(msg.Payload)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				r.log.Warn("failed to close redis subscription", zap.String("topic", topic), zap.Error(err))
			}
		})
	}, nil
}
