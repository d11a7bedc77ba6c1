package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(ifNoneMatch string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if ifNoneMatch != "" {
		r.Header.Set("If-None-Match", ifNoneMatch)
	}
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCachedSendsBodyAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Cached(rec, request(""), Body{Data: []byte(`{"ok":true}`), ETag: `W/"abc"`, TTL: time.Hour, Hit: true})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `W/"abc"`, rec.Header().Get("ETag"))
	assert.Equal(t, CacheHit, rec.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=3600, stale-while-revalidate=1800", rec.Header().Get("Cache-Control"))
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}

func TestCachedNotModified(t *testing.T) {
	rec := httptest.NewRecorder()
	Cached(rec, request(`"abc"`), Body{Data: []byte(`{}`), ETag: `W/"abc"`, TTL: time.Minute})

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, `W/"abc"`, rec.Header().Get("ETag"))
	assert.Equal(t, CacheMiss, rec.Header().Get("X-Cache"))
	assert.Empty(t, rec.Body.String())
}

func TestCachedWithoutTTL(t *testing.T) {
	rec := httptest.NewRecorder()
	Cached(rec, request(""), Body{Data: []byte(`{}`), ETag: `W/"abc"`})
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestETagMatches(t *testing.T) {
	etag := `W/"0011223344556677"`
	assert.False(t, ETagMatches("", etag))
	assert.True(t, ETagMatches("*", etag))
	assert.True(t, ETagMatches(etag, etag))
	assert.True(t, ETagMatches(`"0011223344556677"`, etag))
	assert.True(t, ETagMatches(`W/"ffff", `+etag, etag))
	assert.False(t, ETagMatches(`W/"ffff"`, etag))
}

func TestErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorDetail(rec, http.StatusBadRequest, CodeInvalidLimit, "limit must be an integer", "between 1 and 1000")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := decodeError(t, rec)
	assert.Equal(t, CodeInvalidLimit, body.Code)
	assert.Equal(t, "between 1 and 1000", body.Detail)
}

func TestQueryErrorSplitsNotFoundFromFailure(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusNotFound, CodeNotFound},
		{pgx.ErrNoRows, http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("scan: %w", pgx.ErrNoRows), http.StatusNotFound, CodeNotFound},
		{errors.New("connection reset by peer"), http.StatusInternalServerError, CodeDBError},
	} {
		rec := httptest.NewRecorder()
		QueryError(rec, tc.err, "Account 17 not found")
		assert.Equal(t, tc.status, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, tc.code, body.Code)
		assert.NotContains(t, body.Message, "connection reset")
	}
}
