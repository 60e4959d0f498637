package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	Total int `json:"total"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute), mr
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return stats{Total: calls * 10}, nil
	}

	key, err := c.BuildKey(ctx, "company:a", "dashboard", "company_admin")
	require.NoError(t, err)

	var got stats
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	assert.Equal(t, 10, got.Total)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	assert.Equal(t, 10, got.Total)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx, "company:a"))
	key, err = c.BuildKey(ctx, "company:a", "dashboard", "company_admin")
	require.NoError(t, err)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	assert.Equal(t, 20, got.Total)
	assert.Equal(t, 2, calls)
}

func TestBumpIsScoped(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.BuildKey(ctx, "company:b", "x")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx, "company:a"))
	after, err := c.BuildKey(ctx, "company:b", "x")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFetchJSONExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return stats{Total: calls}, nil
	}
	var got stats
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	assert.Equal(t, 2, calls)
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Cache
	var got stats
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (interface{}, error) {
		return stats{Total: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)

	boom := errors.New("boom")
	err = c.FetchJSON(context.Background(), "k", &got, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, c.Bump(context.Background(), "x"))
}
