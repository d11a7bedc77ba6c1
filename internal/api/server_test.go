package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/fanplan/internal/cache"
	"github.com/albapepper/fanplan/internal/config"
)

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *[]byte:
		*d = r.data
	case *int:
		*d = 1
	}
	return nil
}

type query struct {
	name string
	args []any
}

type fakeDB struct {
	mu      sync.Mutex
	queries []query
	results map[string][]byte
	errs    map[string]error
	down    bool
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query{name: sql, args: args})
	if f.down {
		return fakeRow{err: errors.New("connection refused")}
	}
	if sql == "health_check" {
		return fakeRow{}
	}
	if err, ok := f.errs[sql]; ok {
		return fakeRow{err: err}
	}
	data, ok := f.results[sql]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func (f *fakeDB) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.name == name {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins:  []string{"http://localhost:3000"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		CacheEnabled:      true,
		CurrentSeason:     "2025",
	}
}

func newServer(db *fakeDB, cfg *config.Config) http.Handler {
	return NewRouter(db, cache.New(context.Background(), cfg.CacheEnabled), cfg)
}

func get(h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	db := &fakeDB{}
	h := newServer(db, testConfig())

	rec := get(h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = get(h, "/health/db")
	assert.Equal(t, http.StatusOK, rec.Code)

	db.down = true
	rec = get(h, "/health/db")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(h, "/health/cache")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active"`)
}

func TestGetAccountPassesJSONThroughAndCaches(t *testing.T) {
	body := []byte(`{"season":"2024","account_number":"17","a_games":2}`)
	db := &fakeDB{results: map[string][]byte{"api_account_summary": body}}
	h := newServer(db, testConfig())

	rec := get(h, "/api/v1/seasons/2024/accounts/17")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(body), rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=86400")
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = get(h, "/api/v1/seasons/2024/accounts/17")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = get(h, "/api/v1/seasons/2024/accounts/17", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	assert.Equal(t, 1, db.count("api_account_summary"))
	assert.Equal(t, []any{"2024", "17"}, db.queries[0].args)
}

func TestGetAccountNotFound(t *testing.T) {
	h := newServer(&fakeDB{}, testConfig())

	rec := get(h, "/api/v1/seasons/2024/accounts/404")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestQueryFailureIsServerErrorAndNotCached(t *testing.T) {
	db := &fakeDB{errs: map[string]error{"api_account_summary": errors.New("relation does not exist")}}
	h := newServer(db, testConfig())

	for i := 0; i < 2; i++ {
		rec := get(h, "/api/v1/seasons/2024/accounts/17")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "DB_ERROR")
		assert.NotContains(t, rec.Body.String(), "relation")
	}
	assert.Equal(t, 2, db.count("api_account_summary"))
}

func TestGetSeasonAccountsPaging(t *testing.T) {
	db := &fakeDB{results: map[string][]byte{"api_season_accounts": []byte(`{"season":"2025","total":0,"accounts":[]}`)}}
	h := newServer(db, testConfig())

	rec := get(h, "/api/v1/seasons/2025/accounts?limit=50&offset=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=3600")
	assert.Equal(t, []any{"2025", 50, 100}, db.queries[0].args)

	rec = get(h, "/api/v1/seasons/2025/accounts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2025", 100, 0}, db.queries[1].args)

	for _, path := range []string{
		"/api/v1/seasons/2025/accounts?limit=0",
		"/api/v1/seasons/2025/accounts?limit=5000",
		"/api/v1/seasons/2025/accounts?limit=abc",
		"/api/v1/seasons/2025/accounts?offset=-1",
	} {
		rec = get(h, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestGetSeasons(t *testing.T) {
	db := &fakeDB{results: map[string][]byte{"api_season_totals": []byte(`[{"season":"2024","accounts":3}]`)}}
	h := newServer(db, testConfig())

	rec := get(h, "/api/v1/seasons")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"season":"2024","accounts":3}]`, rec.Body.String())
}

func TestDocsServeEmbeddedSpec(t *testing.T) {
	h := newServer(&fakeDB{}, testConfig())

	rec := get(h, "/docs/doc.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var spec map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	paths := spec["paths"].(map[string]any)
	assert.Contains(t, paths, "/api/v1/seasons/{season}/accounts/{account}")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequests = 2
	h := newServer(&fakeDB{}, cfg)

	assert.Equal(t, http.StatusOK, get(h, "/health").Code)
	rec := get(h, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestIPLimiterSweepsIdleClients(t *testing.T) {
	l := newIPLimiter(10, time.Second)
	now := time.Now()

	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now))
	assert.Len(t, l.limiters, 2)

	later := now.Add(10 * time.Second)
	assert.True(t, l.allow("10.0.0.3", later))
	assert.Len(t, l.limiters, 1)
}
