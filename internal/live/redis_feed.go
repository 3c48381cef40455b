package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisFeed shares change notifications between API instances over Redis pub/sub.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisFeed connects to Redis and verifies the connection.
func NewRedisFeed(addr, password string, db int, channel string, logger *slog.Logger) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{client: client, channel: channel, logger: logger}, nil
}

// Publish implements Feed.
func (f *RedisFeed) Publish(ctx context.Context, topic string) error {
	if err := f.client.Publish(ctx, f.channel, topic).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Listen implements Feed.
func (f *RedisFeed) Listen(ctx context.Context, fn func(topic string)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.logger.Info("listening for changes", "backend", "redis", "channel", f.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis channel %s closed", f.channel)
			}
			fn(msg.Payload)
		}
	}
}

// Close releases the Redis connection.
func (f *RedisFeed) Close() {
	if f.client != nil {
		_ = f.client.Close()
	}
}
