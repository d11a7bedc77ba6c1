// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema setup and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/fanplan/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// EnsureSchema creates the summary table and views if they do not exist.
// It runs on a plain connection because prepared statements reference the
// tables it creates.
func EnsureSchema(ctx context.Context, cfg *config.Config) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Statements lists every prepared statement by name. Postgres builds the JSON
// for API reads so handlers pass raw bytes through.
var Statements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// API: season totals (materialized view)
	"api_season_totals": `SELECT COALESCE(json_agg(row_to_json(t) ORDER BY t.season_sort, t.season), '[]'::json)
		FROM ` + config.SeasonTotalsView + ` t`,

	// API: accounts in a season, paged
	"api_season_accounts": `SELECT json_build_object(
			'season', $1::text,
			'total', (SELECT count(*) FROM ` + config.AccountSummariesTable + ` WHERE season = $1),
			'accounts', COALESCE(json_agg(row_to_json(a) ORDER BY a.account_sort, a.account_number), '[]'::json))
		FROM (
			SELECT * FROM ` + config.AccountSummariesTable + `
			WHERE season = $1
			ORDER BY account_sort, account_number
			LIMIT $2 OFFSET $3
		) a`,

	// API: single account
	"api_account_summary": `SELECT row_to_json(a) FROM ` + config.AccountSummariesTable + ` a
		WHERE a.season = $1 AND a.account_number = $2`,
}

// registerPreparedStatements registers all statements the API layer uses.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
