// Package respond writes API responses: Postgres-built JSON bodies with their
// cache validators, and the structured error shape.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Error codes returned in ErrorResponse.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeDBError       = "DB_ERROR"
	CodeRateLimited   = "RATE_LIMITED"
	CodeMissingSeason = "MISSING_SEASON"
	CodeInvalidLimit  = "INVALID_LIMIT"
	CodeInvalidOffset = "INVALID_OFFSET"
)

// Cache status values for the X-Cache header.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// ErrorResponse is the body of every non-2xx response except 304.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a stable code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Body is a response body ready to send, with its validator and lifetime.
type Body struct {
	Data []byte
	ETag string
	TTL  time.Duration
	Hit  bool
}

// Cached sends b, or 304 when the request's If-None-Match already holds its
// ETag. Both carry the validator and cache headers.
func Cached(w http.ResponseWriter, r *http.Request, b Body) {
	h := w.Header()
	h.Set("ETag", b.ETag)
	h.Set("Vary", "Accept-Encoding")
	if b.Hit {
		h.Set("X-Cache", CacheHit)
	} else {
		h.Set("X-Cache", CacheMiss)
	}
	h.Set("Cache-Control", cacheControl(b.TTL))

	if ETagMatches(r.Header.Get("If-None-Match"), b.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b.Data)
}

// ETagMatches applies the weak comparison If-None-Match uses: a W/ prefix on
// either side is ignored.
func ETagMatches(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

func cacheControl(ttl time.Duration) string {
	maxAge := int(ttl.Seconds())
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2)
}

// Object marshals v as the response body. Used for responses not built by
// Postgres.
func Object(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error sends an ErrorResponse. Errors are never cached.
func Error(w http.ResponseWriter, status int, code, message string) {
	ErrorDetail(w, status, code, message, "")
}

// ErrorDetail sends an ErrorResponse with a detail line.
func ErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	w.Header().Set("Cache-Control", "no-store")
	Object(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Detail: detail}})
}

// QueryError maps a failed read to 404 when no row matched and 500
// otherwise. The database error itself is not echoed to the client.
func QueryError(w http.ResponseWriter, err error, notFound string) {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		Error(w, http.StatusNotFound, CodeNotFound, notFound)
		return
	}
	Error(w, http.StatusInternalServerError, CodeDBError, "Database query failed")
}
