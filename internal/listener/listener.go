// Package listener provides a Postgres LISTEN/NOTIFY consumer that keeps API
// caches fresh. It holds a dedicated pgx connection (not from the pool)
// listening on the summaries_saved channel.
//
// When the pipeline finishes saving summaries it fires pg_notify with the
// seasons it touched, and this consumer drops the cached responses for them.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/fanplan/internal/cache"
	"github.com/albapepper/fanplan/internal/store"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// HandlerFunc processes one save event.
type HandlerFunc func(event store.SavedEvent)

// Start opens a dedicated connection and listens on store.SavedChannel. It
// reconnects automatically on connection loss. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, handle HandlerFunc, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, handle, logger)
		if ctx.Err() != nil {
			logger.Info("Save listener stopped (context cancelled)")
			return
		}

		logger.Error("Save listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, handle HandlerFunc, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+store.SavedChannel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", store.SavedChannel, err)
	}
	logger.Info("Save listener connected", "channel", store.SavedChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := Decode(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse save event",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Info("Save event received",
			"run_id", event.RunID,
			"seasons", event.Seasons,
			"upserted", event.Upserted)
		handle(event)
	}
}

// Decode parses a summaries_saved payload.
func Decode(payload string) (store.SavedEvent, error) {
	var event store.SavedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, err
	}
	return event, nil
}

// InvalidateCache returns a handler dropping the season list and every cached
// response for the seasons in the event.
func InvalidateCache(c *cache.Cache, logger *slog.Logger) HandlerFunc {
	return func(event store.SavedEvent) {
		dropped := c.InvalidateSeasons(event.Seasons...)
		logger.Debug("Cache invalidated", "run_id", event.RunID, "entries", dropped)
	}
}
