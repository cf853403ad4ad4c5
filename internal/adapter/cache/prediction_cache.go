// Package cache provides best-effort Redis-backed caches for the listing
// moderation pipeline, keyed by listing and by task id.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blausher/modsvc/internal/adapter/observability"
	"github.com/blausher/modsvc/internal/domain"
)

const predictionTTL = 24 * time.Hour

// PredictionCache caches synchronous prediction results keyed by item id,
// namespaced "prediction:<item_id>" with a fixed TTL. Every failure is
// logged and reported as a cache miss; callers must always be able to fall
// through to the authoritative store.
type PredictionCache struct {
	client *redis.Client
}

// NewPredictionCache constructs a PredictionCache.
func NewPredictionCache(client *redis.Client) *PredictionCache {
	return &PredictionCache{client: client}
}

func predictionKey(itemID int64) string {
	return "prediction:" + itoa(itemID)
}

// Get returns the cached prediction for itemID, or ok=false on miss or error.
func (c *PredictionCache) Get(ctx context.Context, itemID int64) (domain.PredictionCacheEntry, bool) {
	raw, err := c.client.Get(ctx, predictionKey(itemID)).Result()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "prediction cache get failed", slog.Int64("item_id", itemID), slog.Any("error", err))
			observability.RecordCacheOp("prediction", "get", "error")
		} else {
			observability.RecordCacheOp("prediction", "get", "miss")
		}
		return domain.PredictionCacheEntry{}, false
	}
	var entry domain.PredictionCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		slog.WarnContext(ctx, "prediction cache payload corrupt", slog.Int64("item_id", itemID), slog.Any("error", err))
		observability.RecordCacheOp("prediction", "get", "error")
		return domain.PredictionCacheEntry{}, false
	}
	observability.RecordCacheOp("prediction", "get", "hit")
	return entry, true
}

// Set writes the prediction entry with a fixed TTL. SET and EXPIRE are issued
// as one pipeline so the key is never observable without a TTL.
func (c *PredictionCache) Set(ctx context.Context, itemID int64, entry domain.PredictionCacheEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		slog.WarnContext(ctx, "prediction cache marshal failed", slog.Int64("item_id", itemID), slog.Any("error", err))
		observability.RecordCacheOp("prediction", "set", "error")
		return
	}
	key := predictionKey(itemID)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.Expire(ctx, key, predictionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "prediction cache set failed", slog.Int64("item_id", itemID), slog.Any("error", err))
		observability.RecordCacheOp("prediction", "set", "error")
		return
	}
	observability.RecordCacheOp("prediction", "set", "ok")
}

// Delete removes the cached prediction for itemID. Failures are logged and
// otherwise ignored; they must never fail the caller's operation.
func (c *PredictionCache) Delete(ctx context.Context, itemID int64) {
	if err := c.client.Del(ctx, predictionKey(itemID)).Err(); err != nil {
		slog.WarnContext(ctx, "prediction cache delete failed", slog.Int64("item_id", itemID), slog.Any("error", err))
		observability.RecordCacheOp("prediction", "delete", "error")
		return
	}
	observability.RecordCacheOp("prediction", "delete", "ok")
}
