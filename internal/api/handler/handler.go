// Package handler provides HTTP handlers for all API endpoints.
// Handlers query Postgres directly through prepared statements, no service
// layer. Postgres builds the JSON and handlers pass raw bytes through.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/fanplan/internal/api/respond"
	"github.com/albapepper/fanplan/internal/cache"
	"github.com/albapepper/fanplan/internal/config"
)

// Querier is the subset of *pgxpool.Pool the handlers use.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	db    Querier
	cache *cache.Cache
	cfg   *config.Config
}

// New creates a Handler with shared dependencies.
func New(db Querier, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		db:    db,
		cache: c,
		cfg:   cfg,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and available optimizations.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.Object(w, http.StatusOK, map[string]interface{}{
		"name":    "Fanplan Account API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"optimizations": []string{
			"pgxpool_connection_pooling",
			"prepared_statements",
			"postgres_json_passthrough",
			"gzip_compression",
			"in_memory_cache",
			"etag_support",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.Object(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.db.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.Object(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.Object(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.Object(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// cached serves key from the cache, or runs query and caches the body under
// season. A query that finds nothing yields 404; any other failure yields 500
// and nothing is cached.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, key, season string, ttl time.Duration, notFound string, query func() ([]byte, error)) {
	if e, ok := h.cache.Lookup(key); ok {
		respond.Cached(w, r, respond.Body{Data: e.Body, ETag: e.ETag, TTL: ttl, Hit: true})
		return
	}

	raw, err := query()
	if err != nil || raw == nil {
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			slog.Error("Query failed", "key", key, "error", err)
		}
		respond.QueryError(w, err, notFound)
		return
	}

	e := h.cache.Store(key, season, raw, ttl)
	respond.Cached(w, r, respond.Body{Data: e.Body, ETag: e.ETag, TTL: ttl})
}
