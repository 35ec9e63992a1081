package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/repository/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToolKeyNormalizesParams(t *testing.T) {
	a := ToolKey(models.SourceFinance, map[string]string{"query": "Current price of  NVDA"})
	b := ToolKey(models.SourceFinance, map[string]string{"query": " current price of nvda "})
	c := ToolKey(models.SourceWeather, map[string]string{"query": "current price of nvda"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	w1 := ToolKey(models.SourceWeather, map[string]string{"query": "weather", "location": "Sha Tin, Hong Kong"})
	w2 := ToolKey(models.SourceWeather, map[string]string{"query": "weather", "location": "Central, Hong Kong"})
	assert.NotEqual(t, w1, w2)
}

func TestToolCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewToolCache(inmemory.NewLRU(8))
	params := map[string]string{"query": "AAPL price"}

	_, ok, err := cache.Get(ctx, models.SourceFinance, params)
	require.NoError(t, err)
	assert.False(t, ok)

	res := models.Success(models.SourceFinance, map[string]any{"symbol": "AAPL", "price": 190.1})
	require.NoError(t, cache.Set(ctx, models.SourceFinance, params, res, time.Minute))

	got, ok, err := cache.Get(ctx, models.SourceFinance, params)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(res.Data), string(got.Data))
	assert.True(t, got.OK())
}

func TestAnswerCacheKeyedByCitations(t *testing.T) {
	ctx := context.Background()
	cache := NewAnswerCache(inmemory.NewLRU(8), time.Minute)
	require.NoError(t, cache.Set(ctx, "q", []string{"[1] weather"}, "sunny"))

	got, ok, err := cache.Get(ctx, "q", []string{"[1] weather"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sunny", got)

	_, ok, err = cache.Get(ctx, "q", []string{"[1] finance"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewCacheSelectsBackend(t *testing.T) {
	ctx := context.Background()
	mem, err := NewCache(ctx, config.CacheConfig{Type: "memory", MaxEntries: 4}, config.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &inmemory.LRU{}, mem)

	mr := miniredis.RunT(t)
	rc, err := NewCache(ctx, config.CacheConfig{Type: "redis"}, config.RedisConfig{Host: mr.Host(), Port: mr.Port(), Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, rc.Ping(ctx))

	_, err = NewCache(ctx, config.CacheConfig{Type: "disk"}, config.RedisConfig{}, zap.NewNop())
	require.Error(t, err)
}
