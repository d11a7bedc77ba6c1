// Package store writes account summaries to Postgres and refreshes the views
// built on them.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/fanplan/internal/account"
	"github.com/albapepper/fanplan/internal/config"
)

// Execer is the subset of *pgxpool.Pool the store needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SaveResult tracks counts and errors from a save.
type SaveResult struct {
	RunID    uuid.UUID
	Upserted int
	Errors   []string
}

// AddErrorf records a formatted error message.
func (r *SaveResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the save.
func (r *SaveResult) Summary() string {
	return fmt.Sprintf("run_id=%s upserted=%d errors=%d", r.RunID, r.Upserted, len(r.Errors))
}

const upsertSummarySQL = `
		INSERT INTO ` + config.AccountSummariesTable + ` (
			season, account_number,
			single_game_tickets, partial_plan_tickets, group_tickets, stm, avg_spend,
			fan_segment, distance_to_arena, basketball_propensity, social_media_engagement,
			games_attended, a_games, b_games, c_games, d_games,
			weekend_games, weekday_games, promo_games, non_promo_games,
			cells, num_games_attended, seat_events, run_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7::text::numeric,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24::text::uuid)
		ON CONFLICT (season, account_number) DO UPDATE SET
			single_game_tickets = EXCLUDED.single_game_tickets,
			partial_plan_tickets = EXCLUDED.partial_plan_tickets,
			group_tickets = EXCLUDED.group_tickets,
			stm = EXCLUDED.stm,
			avg_spend = EXCLUDED.avg_spend,
			fan_segment = EXCLUDED.fan_segment,
			distance_to_arena = EXCLUDED.distance_to_arena,
			basketball_propensity = EXCLUDED.basketball_propensity,
			social_media_engagement = EXCLUDED.social_media_engagement,
			games_attended = EXCLUDED.games_attended,
			a_games = EXCLUDED.a_games,
			b_games = EXCLUDED.b_games,
			c_games = EXCLUDED.c_games,
			d_games = EXCLUDED.d_games,
			weekend_games = EXCLUDED.weekend_games,
			weekday_games = EXCLUDED.weekday_games,
			promo_games = EXCLUDED.promo_games,
			non_promo_games = EXCLUDED.non_promo_games,
			cells = EXCLUDED.cells,
			num_games_attended = EXCLUDED.num_games_attended,
			seat_events = EXCLUDED.seat_events,
			run_id = EXCLUDED.run_id,
			updated_at = NOW()`

// UpsertSummary writes one summary to the account_summaries table.
func UpsertSummary(ctx context.Context, db Execer, runID uuid.UUID, s *account.Summary) error {
	cells, err := json.Marshal(s.CellMap())
	if err != nil {
		return fmt.Errorf("marshal cells: %w", err)
	}
	a := s.Attributes
	_, err = db.Exec(ctx, upsertSummarySQL,
		s.Season, s.AccountNumber,
		a.SingleGameTickets, a.PartialPlanTickets, a.GroupTickets, a.STM, a.AvgSpend.String(),
		a.FanSegment, a.DistanceToArena, a.BasketballPropensity, a.SocialMediaEngagement,
		s.GamesAttended, s.TierGames[0], s.TierGames[1], s.TierGames[2], s.TierGames[3],
		s.WeekendGames, s.WeekdayGames, s.PromoGames, s.NonPromoGames,
		cells, s.NumGamesAttend, s.SeatEvents, runID.String(),
	)
	return err
}

// SaveSummaries upserts every summary, collecting per-row failures instead of
// stopping at the first one. A cancelled context stops the loop.
func SaveSummaries(ctx context.Context, db Execer, runID uuid.UUID, summaries []account.Summary, logger *slog.Logger) *SaveResult {
	result := &SaveResult{RunID: runID}
	start := time.Now()
	for i := range summaries {
		if err := ctx.Err(); err != nil {
			result.AddErrorf("save cancelled: %v", err)
			break
		}
		s := &summaries[i]
		if err := UpsertSummary(ctx, db, runID, s); err != nil {
			result.AddErrorf("upsert %s/%s: %v", s.Season, s.AccountNumber, err)
			continue
		}
		result.Upserted++
		if result.Upserted%1000 == 0 {
			logger.Info("Saving summaries", "upserted", result.Upserted, "total", len(summaries))
		}
	}
	logger.Info("Saved summaries",
		"duration", time.Since(start).Round(time.Millisecond),
		"summary", result.Summary())
	return result
}

// RefreshMaterializedViews refreshes the views built on account_summaries.
// Uses CONCURRENTLY so reads are not blocked during refresh.
func RefreshMaterializedViews(ctx context.Context, db Execer, logger *slog.Logger) error {
	views := []string{
		config.SeasonTotalsView,
	}

	for _, v := range views {
		start := time.Now()
		_, err := db.Exec(ctx, fmt.Sprintf("REFRESH MATERIALIZED VIEW CONCURRENTLY %s", v))
		dur := time.Since(start).Round(time.Millisecond)

		if err != nil {
			logger.Warn("Failed to refresh materialized view",
				"view", v, "duration", dur, "error", err)
			return fmt.Errorf("refresh %s: %w", v, err)
		}
		logger.Info("Refreshed materialized view", "view", v, "duration", dur)
	}
	return nil
}

// SavedChannel is the NOTIFY channel announcing a finished save.
const SavedChannel = "summaries_saved"

// SavedEvent is the JSON payload sent on SavedChannel.
type SavedEvent struct {
	RunID     string   `json:"run_id"`
	Seasons   []string `json:"seasons"`
	Upserted  int      `json:"upserted"`
	Timestamp int64    `json:"ts"`
}

// NotifySaved announces the seasons touched by a save so API instances can
// drop their cached responses.
func NotifySaved(ctx context.Context, db Execer, result *SaveResult, summaries []account.Summary) error {
	seen := make(map[string]struct{})
	event := SavedEvent{
		RunID:     result.RunID.String(),
		Upserted:  result.Upserted,
		Timestamp: time.Now().Unix(),
	}
	for i := range summaries {
		s := summaries[i].Season
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		event.Seasons = append(event.Seasons, s)
	}
	sort.Strings(event.Seasons)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", SavedChannel, err)
	}
	if _, err := db.Exec(ctx, "SELECT pg_notify($1, $2)", SavedChannel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", SavedChannel, err)
	}
	return nil
}
