package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blausher/modsvc/internal/adapter/observability"
	"github.com/blausher/modsvc/internal/domain"
)

const (
	taskPendingTTL  = 15 * time.Second
	taskTerminalTTL = 24 * time.Hour
)

// TaskCache caches Task status keyed by task id, namespaced
// "moderation_result:<task_id>". TTL is short for a pending task (it may
// transition at any moment) and long once it reaches a terminal state.
type TaskCache struct {
	client *redis.Client
}

// NewTaskCache constructs a TaskCache.
func NewTaskCache(client *redis.Client) *TaskCache {
	return &TaskCache{client: client}
}

func taskKey(taskID int64) string {
	return "moderation_result:" + itoa(taskID)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// Get returns the cached Task status for taskID. A payload missing the
// required task_id/status fields is treated as a miss.
func (c *TaskCache) Get(ctx context.Context, taskID int64) (domain.TaskCacheEntry, bool) {
	raw, err := c.client.Get(ctx, taskKey(taskID)).Result()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "task cache get failed", slog.Int64("task_id", taskID), slog.Any("error", err))
			observability.RecordCacheOp("task", "get", "error")
		} else {
			observability.RecordCacheOp("task", "get", "miss")
		}
		return domain.TaskCacheEntry{}, false
	}
	var entry domain.TaskCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		slog.WarnContext(ctx, "task cache payload corrupt", slog.Int64("task_id", taskID), slog.Any("error", err))
		observability.RecordCacheOp("task", "get", "error")
		return domain.TaskCacheEntry{}, false
	}
	if entry.TaskID == 0 || entry.Status == "" {
		observability.RecordCacheOp("task", "get", "miss")
		return domain.TaskCacheEntry{}, false
	}
	observability.RecordCacheOp("task", "get", "hit")
	return entry, true
}

// Set writes the Task status entry with a TTL driven by its status.
func (c *TaskCache) Set(ctx context.Context, taskID int64, entry domain.TaskCacheEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		slog.WarnContext(ctx, "task cache marshal failed", slog.Int64("task_id", taskID), slog.Any("error", err))
		observability.RecordCacheOp("task", "set", "error")
		return
	}
	ttl := taskTerminalTTL
	if entry.Status == string(domain.TaskPending) {
		ttl = taskPendingTTL
	}
	key := taskKey(taskID)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "task cache set failed", slog.Int64("task_id", taskID), slog.Any("error", err))
		observability.RecordCacheOp("task", "set", "error")
		return
	}
	observability.RecordCacheOp("task", "set", "ok")
}

// Delete removes the cached status for taskID.
func (c *TaskCache) Delete(ctx context.Context, taskID int64) {
	if err := c.client.Del(ctx, taskKey(taskID)).Err(); err != nil {
		slog.WarnContext(ctx, "task cache delete failed", slog.Int64("task_id", taskID), slog.Any("error", err))
		observability.RecordCacheOp("task", "delete", "error")
		return
	}
	observability.RecordCacheOp("task", "delete", "ok")
}
