package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/fanplan/internal/api/respond"
	"github.com/albapepper/fanplan/internal/cache"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// GetSeasons returns per-season totals.
// @Summary List seasons
// @Description Returns account counts and summed attendance per season from the mv_season_totals materialized view.
// @Tags seasons
// @Produce json
// @Success 200 {array} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /seasons [get]
func (h *Handler) GetSeasons(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, cache.SeasonListKey(), "", cache.TTLSeasonList, "No seasons loaded", func() ([]byte, error) {
		var raw []byte
		err := h.db.QueryRow(r.Context(), "api_season_totals").Scan(&raw)
		return raw, err
	})
}

// GetSeasonAccounts returns a page of account summaries for a season.
// @Summary List account summaries
// @Description Returns account summaries for a season ordered by account number. Response is raw JSON from Postgres.
// @Tags accounts
// @Produce json
// @Param season path string true "Season"
// @Param limit query int false "Page size (default 100, max 1000)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /seasons/{season}/accounts [get]
func (h *Handler) GetSeasonAccounts(w http.ResponseWriter, r *http.Request) {
	season := strings.TrimSpace(chi.URLParam(r, "season"))
	if season == "" {
		respond.Error(w, http.StatusBadRequest, respond.CodeMissingSeason, "season is required")
		return
	}

	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respond.ErrorDetail(w, http.StatusBadRequest, respond.CodeInvalidLimit, "limit must be an integer",
			fmt.Sprintf("between 1 and %d", maxPageSize))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respond.Error(w, http.StatusBadRequest, respond.CodeInvalidOffset, "offset must be a non-negative integer")
		return
	}

	key := cache.AccountsKey(season, limit, offset)
	h.cached(w, r, key, season, h.seasonTTL(season), "No accounts found for season "+season, func() ([]byte, error) {
		var raw []byte
		err := h.db.QueryRow(r.Context(), "api_season_accounts", season, limit, offset).Scan(&raw)
		return raw, err
	})
}

// GetAccount returns one account's summary for a season.
// @Summary Get account summary
// @Description Returns the summary for one account in one season, including the tier/day-type/promo cells.
// @Tags accounts
// @Produce json
// @Param season path string true "Season"
// @Param account path string true "Account number"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /seasons/{season}/accounts/{account} [get]
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	season := strings.TrimSpace(chi.URLParam(r, "season"))
	acct := strings.TrimSpace(chi.URLParam(r, "account"))

	notFound := fmt.Sprintf("Account %s not found for season %s", acct, season)
	h.cached(w, r, cache.AccountKey(season, acct), season, h.seasonTTL(season), notFound, func() ([]byte, error) {
		var raw []byte
		err := h.db.QueryRow(r.Context(), "api_account_summary", season, acct).Scan(&raw)
		return raw, err
	})
}

// seasonTTL caches the current season for less time than past ones.
func (h *Handler) seasonTTL(season string) time.Duration {
	return cache.SeasonTTL(season, h.cfg.CurrentSeason)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
