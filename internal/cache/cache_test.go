package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLookup(t *testing.T) {
	c := New(context.Background(), true)
	key := AccountsKey("2024", 100, 0)

	_, ok := c.Lookup(key)
	assert.False(t, ok)

	stored := c.Store(key, "2024", []byte(`{"accounts":[]}`), time.Minute)
	got, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, stored.ETag, got.ETag)
	assert.Equal(t, ETag([]byte(`{"accounts":[]}`)), got.ETag)
	assert.JSONEq(t, `{"accounts":[]}`, string(got.Body))

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.Seasons)
}

func TestExpiredEntriesAreMissesAndSwept(t *testing.T) {
	c := New(context.Background(), true)
	c.Store("old", "2023", []byte("1"), -time.Second)

	_, ok := c.Lookup("old")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().Expired)

	assert.Equal(t, 1, c.sweep(time.Now()))
	st := c.Stats()
	assert.Zero(t, st.Entries)
	assert.Zero(t, st.Seasons)
}

func TestDisabledCacheStillComputesETag(t *testing.T) {
	c := New(context.Background(), false)
	e := c.Store("k", "", []byte("v"), time.Minute)
	assert.Equal(t, ETag([]byte("v")), e.ETag)
	_, ok := c.Lookup("k")
	assert.False(t, ok)
}

func TestInvalidateSeasons(t *testing.T) {
	c := New(context.Background(), true)
	c.Store(SeasonListKey(), "", []byte("s"), time.Minute)
	c.Store(AccountsKey("2024", 100, 0), "2024", []byte("a"), time.Minute)
	c.Store(AccountKey("2024", "17"), "2024", []byte("b"), time.Minute)
	c.Store(AccountKey("20245", "17"), "20245", []byte("c"), time.Minute)

	assert.Equal(t, 3, c.InvalidateSeasons("2024"))

	_, ok := c.Lookup(SeasonListKey())
	assert.False(t, ok)
	_, ok = c.Lookup(AccountKey("20245", "17"))
	assert.True(t, ok)
}

func TestStoreRefilesKeyUnderNewSeason(t *testing.T) {
	c := New(context.Background(), true)
	c.Store("k", "2023", []byte("a"), time.Minute)
	c.Store("k", "2024", []byte("b"), time.Minute)

	assert.Zero(t, c.InvalidateSeasons("2023"))
	assert.Equal(t, 1, c.InvalidateSeasons("2024"))
}

func TestSeasonTTL(t *testing.T) {
	assert.Equal(t, TTLOpenSeason, SeasonTTL("2024", ""))
	assert.Equal(t, TTLOpenSeason, SeasonTTL("2025", "2025"))
	assert.Equal(t, TTLClosedSeason, SeasonTTL("2024", "2025"))
}
