// Package usecase contains the application services orchestrating the
// moderation pipeline's domain ports.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/blausher/modsvc/internal/adapter/observability"
	"github.com/blausher/modsvc/internal/domain"
	obsctx "github.com/blausher/modsvc/internal/observability"
)

// EnqueueService resolves a Listing, creates a pending Task, and publishes a
// moderation request to the bus.
type EnqueueService struct {
	Listings domain.ListingRepository
	Tasks    domain.TaskRepository
	Bus      domain.Bus
}

// NewEnqueueService constructs an EnqueueService.
func NewEnqueueService(listings domain.ListingRepository, tasks domain.TaskRepository, bus domain.Bus) EnqueueService {
	return EnqueueService{Listings: listings, Tasks: tasks, Bus: bus}
}

// Enqueue implements spec §4.4: resolve listing, create-or-reuse a pending
// Task, and publish a moderation request. When step 2 returns an existing
// pending or completed Task, a request is still published; the worker's
// claim discipline discards the duplicate cleanly.
func (s EnqueueService) Enqueue(ctx context.Context, itemID int64) (domain.Task, error) {
	tr := otel.Tracer("usecase.enqueue")
	ctx, span := tr.Start(ctx, "EnqueueService.Enqueue")
	defer span.End()

	lg := obsctx.LoggerFromContext(ctx)

	_, ok, err := s.Listings.SelectListing(ctx, itemID)
	if err != nil {
		lg.Error("enqueue: listing lookup failed", slog.Int64("item_id", itemID), slog.Any("error", err))
		return domain.Task{}, fmt.Errorf("op=usecase.Enqueue: %w", err)
	}
	if !ok {
		return domain.Task{}, fmt.Errorf("op=usecase.Enqueue: %w", domain.ErrNotFound)
	}

	task, err := s.Tasks.CreatePending(ctx, itemID)
	if err != nil {
		lg.Error("enqueue: create_pending failed", slog.Int64("item_id", itemID), slog.Any("error", err))
		return domain.Task{}, fmt.Errorf("op=usecase.Enqueue: %w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := s.Bus.PublishModerationRequest(ctx, itemID); err != nil {
		lg.Error("enqueue: publish failed", slog.Int64("item_id", itemID), slog.Any("error", err))
		return domain.Task{}, fmt.Errorf("op=usecase.Enqueue: %w: %v", domain.ErrBusUnavailable, err)
	}

	observability.EnqueueTask("accepted")
	lg.Info("enqueue: accepted", slog.Int64("item_id", itemID), slog.Int64("task_id", task.ID), slog.String("status", string(task.Status)))
	return task, nil
}
