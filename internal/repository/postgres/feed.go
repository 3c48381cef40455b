package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Feed publishes collection changes with pg_notify and receives them with
// LISTEN on a dedicated pooled connection.
type Feed struct {
	pool    *pgxpool.Pool
	channel string
	logger  *slog.Logger
}

// NewFeed constructs a Feed on channel.
func NewFeed(pool *pgxpool.Pool, channel string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{pool: pool, channel: channel, logger: logger}
}

// Publish notifies listeners that topic changed.
func (f *Feed) Publish(ctx context.Context, topic string) error {
	if _, err := f.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, f.channel, topic); err != nil {
		return fmt.Errorf("notify %s: %w", f.channel, err)
	}
	return nil
}

// Listen blocks until ctx is done, calling fn for every notification.
func (f *Feed) Listen(ctx context.Context, fn func(topic string)) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", f.channel, err)
	}
	f.logger.Info("listening for changes", "backend", "postgres", "channel", f.channel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		fn(notification.Payload)
	}
}
