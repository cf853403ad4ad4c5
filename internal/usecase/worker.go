package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"

	"github.com/blausher/modsvc/internal/adapter/observability"
	"github.com/blausher/modsvc/internal/domain"
)

const maxErrorMessageLen = 1000

// decision threshold: probability >= violationThreshold marks the listing a
// violation, per spec §4.5 step 4.
const violationThreshold = 0.5

// moderationMessage is the wire shape of one moderation request record.
type moderationMessage struct {
	ItemID *int64 `json:"item_id"`
}

// WorkerService implements the Moderation Worker's per-message handling
// (spec §4.5): decode, resolve the Listing, score it, commit the terminal
// Task state, and route every failure to the dead-letter topic.
type WorkerService struct {
	Listings domain.ListingRepository
	Tasks    domain.TaskRepository
	Scorer   domain.Scorer
	Bus      domain.Bus
}

// NewWorkerService constructs a WorkerService.
func NewWorkerService(listings domain.ListingRepository, tasks domain.TaskRepository, scorer domain.Scorer, bus domain.Bus) WorkerService {
	return WorkerService{Listings: listings, Tasks: tasks, Scorer: scorer, Bus: bus}
}

// Handle implements kafka.Handler. It never returns an error that the
// caller needs to act on beyond logging: every failure mode here has
// already been routed to the dead-letter topic (and, when a task is
// addressable, to claim_and_fail) before Handle returns.
func (s WorkerService) Handle(ctx context.Context, raw []byte) error {
	tr := otel.Tracer("usecase.worker")
	ctx, span := tr.Start(ctx, "WorkerService.Handle")
	defer span.End()

	observability.StartProcessingTask("handle")
	defer observability.StopProcessingTask("handle")

	itemID, err := decodeModerationMessage(raw)
	if err != nil {
		s.deadLetter(ctx, raw, "Invalid message payload", err)
		return nil
	}

	listing, ok, err := s.Listings.SelectListing(ctx, itemID)
	if err != nil {
		s.failAndDeadLetter(ctx, raw, itemID, "Database read failed", err)
		return nil
	}
	if !ok {
		s.failAndDeadLetter(ctx, raw, itemID, "Advertisement not found", nil)
		return nil
	}

	probability, err := s.Scorer.Score(ctx, domain.FeatureVector(listing))
	if err != nil {
		s.failAndDeadLetter(ctx, raw, itemID, "Prediction failed", err)
		return nil
	}

	isViolation := probability >= violationThreshold
	taskID, claimed, err := s.Tasks.ClaimAndComplete(ctx, itemID, isViolation, probability)
	if err != nil {
		s.failAndDeadLetter(ctx, raw, itemID, "Database write failed", err)
		return nil
	}
	if !claimed {
		slog.InfoContext(ctx, "moderation: no pending task to claim, discarding duplicate", slog.Int64("item_id", itemID))
		observability.DiscardTask()
		return nil
	}

	observability.CompleteTask(probability)
	slog.InfoContext(ctx, "moderation: task completed",
		slog.Int64("item_id", itemID), slog.Int64("task_id", taskID),
		slog.Bool("is_violation", isViolation), slog.Float64("probability", probability))
	return nil
}

func decodeModerationMessage(raw []byte) (int64, error) {
	var msg moderationMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	if msg.ItemID == nil {
		return 0, fmt.Errorf("decode: item_id required")
	}
	if *msg.ItemID < 0 {
		return 0, fmt.Errorf("decode: item_id must be non-negative")
	}
	return *msg.ItemID, nil
}

// failAndDeadLetter claims and fails the task (when addressable) then
// publishes a DeadLetter envelope, composing the error message per §4.5:
// base message plus ": <detail>" only when the trimmed detail is non-empty.
func (s WorkerService) failAndDeadLetter(ctx context.Context, raw []byte, itemID int64, base string, cause error) {
	errMessage := composeErrorMessage(base, cause)

	var taskID int64
	var claimed bool
	claimFailBackoff := backoff.NewExponentialBackOff()
	claimFailBackoff.InitialInterval = 50 * time.Millisecond
	claimFailBackoff.MaxInterval = 500 * time.Millisecond
	bo := backoff.WithContext(backoff.WithMaxRetries(claimFailBackoff, 3), ctx)
	err := backoff.Retry(func() error {
		var attemptErr error
		taskID, claimed, attemptErr = s.Tasks.ClaimAndFail(ctx, itemID, errMessage)
		return attemptErr
	}, bo)
	if err != nil {
		slog.ErrorContext(ctx, "moderation: claim_and_fail failed after retries", slog.Int64("item_id", itemID), slog.Any("error", err))
	} else if claimed {
		observability.FailTask(base)
		slog.WarnContext(ctx, "moderation: task failed", slog.Int64("item_id", itemID), slog.Int64("task_id", taskID), slog.String("error_message", errMessage))
	}

	s.deadLetter(ctx, raw, errMessage, nil)
}

func (s WorkerService) deadLetter(ctx context.Context, raw []byte, errMessage string, decodeCause error) {
	if decodeCause != nil {
		errMessage = composeErrorMessage(errMessage, decodeCause)
	}
	var original map[string]any
	if err := json.Unmarshal(raw, &original); err != nil || original == nil {
		original = map[string]any{"raw_payload": strings.ToValidUTF8(string(raw), "�")}
	}
	retryCount := 1
	if prev, ok := original["retry_count"].(float64); ok && prev >= 0 && prev == math.Trunc(prev) {
		retryCount = int(prev) + 1
	}

	dl := domain.DeadLetter{
		OriginalMessage: original,
		Error:           errMessage,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		RetryCount:      retryCount,
	}
	if err := s.Bus.PublishDeadLetter(ctx, dl); err != nil {
		slog.ErrorContext(ctx, "moderation: dead letter publish failed", slog.Any("error", err))
		return
	}
	observability.RecordDLQ(errMessage)
}

func composeErrorMessage(base string, cause error) string {
	msg := base
	if cause != nil {
		detail := strings.TrimSpace(cause.Error())
		if detail != "" {
			msg = base + ": " + detail
		}
	}
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
