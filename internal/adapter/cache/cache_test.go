package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blausher/modsvc/internal/domain"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestPredictionCache_SetGetDelete(t *testing.T) {
	client, mr := newTestRedis(t)
	c := NewPredictionCache(client)
	ctx := context.Background()

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	c.Set(ctx, 1, domain.PredictionCacheEntry{IsValid: true, Probability: 0.42})
	entry, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, 0.42, entry.Probability)

	ttl := mr.TTL("prediction:1")
	assert.InDelta(t, predictionTTL.Seconds(), ttl.Seconds(), 1)

	c.Delete(ctx, 1)
	_, ok = c.Get(ctx, 1)
	assert.False(t, ok)
}

func TestPredictionCache_ExpiredIsMiss(t *testing.T) {
	client, mr := newTestRedis(t)
	c := NewPredictionCache(client)
	ctx := context.Background()

	c.Set(ctx, 2, domain.PredictionCacheEntry{IsValid: true, Probability: 0.1})
	mr.FastForward(predictionTTL + time.Second)
	_, ok := c.Get(ctx, 2)
	assert.False(t, ok)
}

func TestTaskCache_TTLByStatus(t *testing.T) {
	client, mr := newTestRedis(t)
	c := NewTaskCache(client)
	ctx := context.Background()

	c.Set(ctx, 5, domain.TaskCacheEntry{TaskID: 5, Status: string(domain.TaskPending)})
	ttl := mr.TTL("moderation_result:5")
	assert.InDelta(t, taskPendingTTL.Seconds(), ttl.Seconds(), 1)

	prob := 0.9
	c.Set(ctx, 5, domain.TaskCacheEntry{TaskID: 5, Status: string(domain.TaskCompleted), Probability: &prob})
	ttl = mr.TTL("moderation_result:5")
	assert.InDelta(t, taskTerminalTTL.Seconds(), ttl.Seconds(), 5)

	entry, ok := c.Get(ctx, 5)
	require.True(t, ok)
	assert.Equal(t, "completed", entry.Status)
	require.NotNil(t, entry.Probability)
	assert.Equal(t, 0.9, *entry.Probability)
}

func TestTaskCache_MissingRequiredFieldsIsMiss(t *testing.T) {
	client, mr := newTestRedis(t)
	c := NewTaskCache(client)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "moderation_result:6", `{"is_violation":true}`, 0).Err())
	_, ok := c.Get(ctx, 6)
	assert.False(t, ok)
	_ = mr
}

func TestTaskCache_Delete(t *testing.T) {
	client, _ := newTestRedis(t)
	c := NewTaskCache(client)
	ctx := context.Background()
	c.Set(ctx, 9, domain.TaskCacheEntry{TaskID: 9, Status: string(domain.TaskFailed)})
	c.Delete(ctx, 9)
	_, ok := c.Get(ctx, 9)
	assert.False(t, ok)
}
