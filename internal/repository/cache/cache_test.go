package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jgivc/ghrelay/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestFSCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)

	c, err := NewFSCache(afero.NewMemMapFs(), "/cache", 0, testLogger())
	require.NoError(t, err)
	c.now = func() time.Time { return now }

	_, err = c.Get(ctx, "gh:missing")
	require.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "gh:key", []byte("value"), time.Hour))

	data, err := c.Get(ctx, "gh:key")
	require.NoError(t, err)
	require.Equal(t, "value", string(data))

	now = now.Add(time.Hour)
	_, err = c.Get(ctx, "gh:key")
	require.ErrorIs(t, err, common.ErrCacheMiss)

	exists, err := afero.Exists(c.fs, c.path("gh:key"))
	require.NoError(t, err)
	require.False(t, exists, "expired entry must be removed")
}

func TestFSCacheZeroTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, testLogger())

	require.NoError(t, c.Set(ctx, "gh:key", []byte("value"), 0))

	_, err := c.Get(ctx, "gh:key")
	require.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestFSCacheSweepsUnreadEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)

	c, err := NewFSCache(afero.NewMemMapFs(), "/cache", 0, testLogger())
	require.NoError(t, err)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "gh:short", []byte("value"), 10*time.Second))
	require.NoError(t, c.Set(ctx, "gh:long", []byte("value"), time.Hour))

	now = now.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "gh:other", []byte("value"), time.Hour))
	requireExists(t, c, "gh:short", true)

	now = now.Add(sweepInterval)
	require.NoError(t, c.Set(ctx, "gh:another", []byte("value"), time.Hour))
	requireExists(t, c, "gh:short", false)
	requireExists(t, c, "gh:long", true)
	requireExists(t, c, "gh:other", true)
}

func TestFSCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)

	c := NewMemoryCache(10, testLogger())
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "gh:one", []byte("aaaa"), 3*time.Hour))
	require.NoError(t, c.Set(ctx, "gh:two", []byte("bbbb"), time.Hour))
	requireExists(t, c, "gh:one", true)
	requireExists(t, c, "gh:two", true)

	require.NoError(t, c.Set(ctx, "gh:three", []byte("cccc"), 2*time.Hour))
	requireExists(t, c, "gh:two", false)
	requireExists(t, c, "gh:one", true)
	requireExists(t, c, "gh:three", true)

	data, err := c.Get(ctx, "gh:three")
	require.NoError(t, err)
	require.Equal(t, "cccc", string(data))
}

func TestFSCacheSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)

	fs := afero.NewMemMapFs()
	c, err := NewFSCache(fs, "/cache", 0, testLogger())
	require.NoError(t, err)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "gh:key", []byte("value"), time.Minute))

	tmp := c.path("gh:pending") + tmpMarker + "1"
	require.NoError(t, afero.WriteFile(fs, tmp, []byte("partial"), cacheFileMode))
	require.NoError(t, fs.Chtimes(tmp, now, now))

	now = now.Add(time.Minute)
	require.NoError(t, c.Sweep(ctx))
	requireExists(t, c, "gh:key", false)

	exists, err := afero.Exists(fs, tmp)
	require.NoError(t, err)
	require.True(t, exists, "file being written must be kept")
}

func requireExists(t *testing.T, c *fsCache, key string, expect bool) {
	t.Helper()

	exists, err := afero.Exists(c.fs, c.path(key))
	require.NoError(t, err)
	require.Equal(t, expect, exists, key)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cl.Close()

	c := NewRedisCache(cl, testLogger())

	_, err := c.Get(ctx, "gh:missing")
	require.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "gh:key", []byte("value"), time.Hour))
	require.True(t, mr.Exists("ghr:gh:key"))

	data, err := c.Get(ctx, "gh:key")
	require.NoError(t, err)
	require.Equal(t, "value", string(data))

	mr.FastForward(time.Hour)

	_, err = c.Get(ctx, "gh:key")
	require.ErrorIs(t, err, common.ErrCacheMiss)
}
