// Package cache holds API response bodies in memory, grouped by season so a
// reload of one season drops exactly the responses built from it.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Response lifetimes. A closed season only changes when it is reloaded, and
// reloads invalidate it explicitly.
const (
	TTLSeasonList   = 10 * time.Minute
	TTLOpenSeason   = 1 * time.Hour
	TTLClosedSeason = 24 * time.Hour

	evictInterval = 5 * time.Minute
)

// SeasonTTL returns the lifetime for responses about season. With no current
// season configured every season is treated as open.
func SeasonTTL(season, current string) time.Duration {
	if current == "" || season == current {
		return TTLOpenSeason
	}
	return TTLClosedSeason
}

// SeasonListKey names the cached season totals.
func SeasonListKey() string { return "seasons" }

// AccountsKey names one page of a season's account list.
func AccountsKey(season string, limit, offset int) string {
	return fmt.Sprintf("accounts:%s:%d:%d", season, limit, offset)
}

// AccountKey names one account's summary.
func AccountKey(season, account string) string {
	return fmt.Sprintf("account:%s:%s", season, account)
}

// Entry is a cached body and its validator.
type Entry struct {
	Body    []byte
	ETag    string
	season  string
	expires time.Time
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Enabled bool  `json:"enabled"`
	Entries int   `json:"entries"`
	Active  int   `json:"active"`
	Expired int   `json:"expired"`
	Seasons int   `json:"seasons"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache is safe for concurrent use. A disabled cache stores nothing but
// still computes ETags.
type Cache struct {
	enabled bool

	mu       sync.RWMutex
	entries  map[string]Entry
	bySeason map[string]map[string]struct{}

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a cache. When enabled, expired entries are swept until ctx is
// done.
func New(ctx context.Context, enabled bool) *Cache {
	c := &Cache{
		enabled:  enabled,
		entries:  make(map[string]Entry),
		bySeason: make(map[string]map[string]struct{}),
	}
	if enabled {
		go c.sweepLoop(ctx)
	}
	return c
}

// Lookup returns the live entry for key.
func (c *Cache) Lookup(key string) (Entry, bool) {
	if !c.enabled {
		return Entry{}, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !time.Now().Before(e.expires) {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Store keeps body under key for ttl and files it under season, which may be
// empty for responses spanning every season. It returns the stored entry.
func (c *Cache) Store(key, season string, body []byte, ttl time.Duration) Entry {
	e := Entry{Body: body, ETag: ETag(body), season: season, expires: time.Now().Add(ttl)}
	if !c.enabled {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok {
		c.unindex(key, old.season)
	}
	c.entries[key] = e
	keys, ok := c.bySeason[season]
	if !ok {
		keys = make(map[string]struct{})
		c.bySeason[season] = keys
	}
	keys[key] = struct{}{}
	return e
}

// InvalidateSeasons drops the cross-season responses and every response
// filed under one of seasons. It returns the number of entries removed.
func (c *Cache) InvalidateSeasons(seasons ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for _, s := range append([]string{""}, seasons...) {
		for key := range c.bySeason[s] {
			delete(c.entries, key)
			dropped++
		}
		delete(c.bySeason, s)
	}
	return dropped
}

// Stats reports entry counts and the hit ratio inputs.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Stats{
		Enabled: c.enabled,
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	now := time.Now()
	for _, e := range c.entries {
		if now.Before(e.expires) {
			st.Active++
		}
	}
	st.Expired = st.Entries - st.Active
	for s := range c.bySeason {
		if s != "" {
			st.Seasons++
		}
	}
	return st
}

func (c *Cache) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *Cache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
			c.unindex(key, e.season)
			n++
		}
	}
	return n
}

// unindex must be called with mu held.
func (c *Cache) unindex(key, season string) {
	keys := c.bySeason[season]
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.bySeason, season)
	}
}

// ETag returns a weak validator for body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf(`W/"%x"`, sum[:8])
}
