package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/blausher/modsvc/internal/domain"
	obsctx "github.com/blausher/modsvc/internal/observability"
)

// ReadAPIService implements the cache-aside reads and the closure
// invalidation path of spec §4.6.
type ReadAPIService struct {
	Tasks           domain.TaskRepository
	TaskCache       domain.TaskCache
	Listings        domain.ListingRepository
	PredictionCache domain.PredictionCache
	Scorer          domain.Scorer
}

// NewReadAPIService constructs a ReadAPIService.
func NewReadAPIService(tasks domain.TaskRepository, taskCache domain.TaskCache, listings domain.ListingRepository, predictionCache domain.PredictionCache, scorer domain.Scorer) ReadAPIService {
	return ReadAPIService{Tasks: tasks, TaskCache: taskCache, Listings: listings, PredictionCache: predictionCache, Scorer: scorer}
}

// GetTaskStatus is a cache-aside read of a Task's status keyed by task id.
func (s ReadAPIService) GetTaskStatus(ctx context.Context, taskID int64) (domain.TaskCacheEntry, error) {
	tr := otel.Tracer("usecase.readapi")
	ctx, span := tr.Start(ctx, "ReadAPIService.GetTaskStatus")
	defer span.End()

	if entry, ok := s.TaskCache.Get(ctx, taskID); ok {
		return entry, nil
	}

	task, ok, err := s.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return domain.TaskCacheEntry{}, fmt.Errorf("op=usecase.GetTaskStatus: %w", err)
	}
	if !ok {
		return domain.TaskCacheEntry{}, fmt.Errorf("op=usecase.GetTaskStatus: %w", domain.ErrNotFound)
	}

	entry := domain.TaskCacheEntry{
		TaskID:      task.ID,
		Status:      string(task.Status),
		IsViolation: task.IsViolation,
		Probability: task.Probability,
	}
	s.TaskCache.Set(ctx, taskID, entry)
	return entry, nil
}

// SimplePredict is a cache-aside synchronous prediction, keyed by item id.
func (s ReadAPIService) SimplePredict(ctx context.Context, itemID int64) (domain.PredictionCacheEntry, error) {
	tr := otel.Tracer("usecase.readapi")
	ctx, span := tr.Start(ctx, "ReadAPIService.SimplePredict")
	defer span.End()

	if entry, ok := s.PredictionCache.Get(ctx, itemID); ok {
		return entry, nil
	}

	entry, err := s.predict(ctx, itemID)
	if err != nil {
		return domain.PredictionCacheEntry{}, err
	}
	s.PredictionCache.Set(ctx, itemID, entry)
	return entry, nil
}

// Predict scores itemID synchronously, bypassing the cache.
func (s ReadAPIService) Predict(ctx context.Context, itemID int64) (domain.PredictionCacheEntry, error) {
	tr := otel.Tracer("usecase.readapi")
	ctx, span := tr.Start(ctx, "ReadAPIService.Predict")
	defer span.End()
	return s.predict(ctx, itemID)
}

func (s ReadAPIService) predict(ctx context.Context, itemID int64) (domain.PredictionCacheEntry, error) {
	listing, ok, err := s.Listings.SelectListing(ctx, itemID)
	if err != nil {
		return domain.PredictionCacheEntry{}, fmt.Errorf("op=usecase.predict: %w", err)
	}
	if !ok {
		return domain.PredictionCacheEntry{}, fmt.Errorf("op=usecase.predict: %w", domain.ErrNotFound)
	}

	probability, err := s.Scorer.Score(ctx, domain.FeatureVector(listing))
	if err != nil {
		return domain.PredictionCacheEntry{}, fmt.Errorf("op=usecase.predict: %w", err)
	}

	return domain.PredictionCacheEntry{IsValid: probability < 0.5, Probability: probability}, nil
}

// CloseListing closes itemID and invalidates the prediction and every
// associated task status cache entry. Cache-delete failures are logged by
// the cache adapters themselves and never fail the closure.
func (s ReadAPIService) CloseListing(ctx context.Context, itemID int64) (bool, error) {
	tr := otel.Tracer("usecase.readapi")
	ctx, span := tr.Start(ctx, "ReadAPIService.CloseListing")
	defer span.End()

	lg := obsctx.LoggerFromContext(ctx)

	taskIDs, ok, err := s.Listings.CloseListing(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("op=usecase.CloseListing: %w", err)
	}
	if !ok {
		return false, nil
	}

	s.PredictionCache.Delete(ctx, itemID)
	for _, taskID := range taskIDs {
		s.TaskCache.Delete(ctx, taskID)
	}
	lg.Info("listing closed", slog.Int64("item_id", itemID), slog.Int("invalidated_tasks", len(taskIDs)))
	return true, nil
}
