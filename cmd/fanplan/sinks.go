package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/fanplan/internal/account"
	"github.com/albapepper/fanplan/internal/config"
	"github.com/albapepper/fanplan/internal/db"
	"github.com/albapepper/fanplan/internal/export"
	"github.com/albapepper/fanplan/internal/publish"
	"github.com/albapepper/fanplan/internal/store"
	"github.com/albapepper/fanplan/internal/table"
)

// withDatabase prepares the schema, opens a pool, and closes it after fn.
func withDatabase(ctx context.Context, cfg *config.Config, fn func(pool *db.Pool) error) error {
	if err := db.EnsureSchema(ctx, cfg); err != nil {
		return fmt.Errorf("prepare schema: %w", err)
	}
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(pool)
}

func saveSummaries(ctx context.Context, cfg *config.Config, runID uuid.UUID, summaries []account.Summary) error {
	return withDatabase(ctx, cfg, func(pool *db.Pool) error {
		result := store.SaveSummaries(ctx, pool.Pool, runID, summaries, logger)
		if len(result.Errors) > 0 {
			for _, e := range result.Errors {
				logger.Error("store error", "error", e)
			}
			return fmt.Errorf("store: %d of %d summaries failed", len(result.Errors), len(summaries))
		}
		if err := store.RefreshMaterializedViews(ctx, pool.Pool, logger); err != nil {
			return err
		}
		return store.NotifySaved(ctx, pool.Pool, result, summaries)
	})
}

func publishSummaries(ctx context.Context, cfg *config.Config, runID uuid.UUID, summaries []account.Summary) error {
	if err := cfg.RequireKafka(); err != nil {
		return err
	}
	producer := publish.NewProducer(cfg.KafkaBrokers, cfg.KafkaSummaryTopic, logger)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn("Failed to close producer", "error", err)
		}
	}()

	start := time.Now()
	sent, err := producer.PublishSummaries(ctx, runID, summaries)
	logger.Info("Published summaries",
		"duration", time.Since(start).Round(time.Millisecond),
		"topic", cfg.KafkaSummaryTopic,
		"sent", sent,
		"total", len(summaries))
	return err
}

func exportTable(ctx context.Context, path, tableName string, t *table.Table) error {
	res, err := export.WriteSQLite(ctx, path, tableName, t)
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	logger.Info("SQLite export finished", "path", path, "summary", res.Summary())
	return nil
}
