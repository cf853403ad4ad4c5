// Package domain defines core entities, ports, and domain-specific errors
// for the listing moderation pipeline.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels). Adapters wrap the underlying cause with
// fmt.Errorf("op=...: %w", sentinel) so callers can use errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrSellerNotFound     = errors.New("seller not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBusUnavailable     = errors.New("bus unavailable")
	ErrScorerNotLoaded    = errors.New("scorer not loaded")
	ErrScorerFailed       = errors.New("scorer failed")
	ErrInvalidInput       = errors.New("invalid input")
)

// TaskStatus is the lifecycle state of a moderation Task.
type TaskStatus string

// Task status values. The only legal transitions are
// TaskPending -> TaskCompleted and TaskPending -> TaskFailed.
const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Seller is an account allowed to submit Listings.
type Seller struct {
	ID               int64
	IsVerifiedSeller bool
}

// Listing is an ad submitted by a Seller, identified by ItemID.
// Immutable after creation; destroyed only by closure, which cascades
// to every Task referencing its ItemID.
type Listing struct {
	ItemID           int64
	SellerID         int64
	IsVerifiedSeller bool
	Name             string
	Description      string
	Category         int
	ImagesQty        int
}

// Task (a.k.a. ModerationResult) is one moderation attempt on a Listing.
type Task struct {
	ID           int64
	ItemID       int64
	Status       TaskStatus
	IsViolation  *bool
	Probability  *float64
	ErrorMessage *string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// ListingRepository persists Listings and resolves Sellers.
type ListingRepository interface {
	// CreateListing inserts a Listing. Returns ErrSellerNotFound when no
	// Seller row matches sellerID, or ErrAlreadyExists on a unique-key
	// conflict on itemID.
	CreateListing(ctx context.Context, sellerID, itemID int64, name, description string, category, imagesQty int) (Listing, error)
	// SelectListing returns the Listing joined with its Seller's
	// verification flag, or (Listing{}, false, nil) when absent.
	SelectListing(ctx context.Context, itemID int64) (Listing, bool, error)
	// CreateSeller inserts a Seller row. Returns ErrAlreadyExists on
	// duplicate id.
	CreateSeller(ctx context.Context, id int64, isVerifiedSeller bool) (Seller, error)
	// CloseListing deletes the Listing and every Task referencing itemID
	// in one transaction. Returns the deleted task ids, or ok=false when
	// the Listing did not exist (regardless of orphan Task rows).
	CloseListing(ctx context.Context, itemID int64) (taskIDs []int64, ok bool, err error)
}

// TaskRepository persists moderation Tasks and their state transitions.
type TaskRepository interface {
	// CreatePending returns the existing pending-or-completed Task for
	// itemID when one exists (pending wins, ties broken by highest id),
	// otherwise inserts a new pending Task.
	CreatePending(ctx context.Context, itemID int64) (Task, error)
	// GetTask returns a Task by id, or (Task{}, false, nil) when absent.
	GetTask(ctx context.Context, taskID int64) (Task, bool, error)
	// ClaimAndComplete exclusively claims the oldest pending Task for
	// itemID and transitions it to completed. Returns (0, false, nil)
	// when no pending Task is available to claim.
	ClaimAndComplete(ctx context.Context, itemID int64, isViolation bool, probability float64) (taskID int64, ok bool, err error)
	// ClaimAndFail exclusively claims the oldest pending Task for itemID
	// and transitions it to failed with errMessage (truncated to 1000
	// chars). Returns (0, false, nil) when no pending Task is available.
	ClaimAndFail(ctx context.Context, itemID int64, errMessage string) (taskID int64, ok bool, err error)
}

// PredictionCacheEntry is the cached shape for a synchronous prediction.
type PredictionCacheEntry struct {
	IsValid     bool    `json:"is_valid"`
	Probability float64 `json:"probability"`
}

// TaskCacheEntry is the cached shape for a Task's status.
type TaskCacheEntry struct {
	TaskID      int64    `json:"task_id"`
	Status      string   `json:"status"`
	IsViolation *bool    `json:"is_violation,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
}

// PredictionCache is the best-effort, cache-aside store of synchronous
// prediction results, keyed by item id, fixed 24h TTL.
type PredictionCache interface {
	Get(ctx context.Context, itemID int64) (PredictionCacheEntry, bool)
	Set(ctx context.Context, itemID int64, entry PredictionCacheEntry)
	Delete(ctx context.Context, itemID int64)
}

// TaskCache is the best-effort, cache-aside store of Task status, keyed
// by task id, TTL dependent on status (15s pending, 24h terminal).
type TaskCache interface {
	Get(ctx context.Context, taskID int64) (TaskCacheEntry, bool)
	Set(ctx context.Context, taskID int64, entry TaskCacheEntry)
	Delete(ctx context.Context, taskID int64)
}

// ModerationRequest is the body published on the moderation bus topic.
type ModerationRequest struct {
	ItemID    int64  `json:"item_id"`
	Timestamp string `json:"timestamp"`
}

// DeadLetter is the envelope published on the moderation DLQ topic.
type DeadLetter struct {
	OriginalMessage map[string]any `json:"original_message"`
	Error           string         `json:"error"`
	Timestamp       string         `json:"timestamp"`
	RetryCount      int            `json:"retry_count"`
}

// Bus publishes moderation requests and dead-letter envelopes on a
// publish-and-await basis (no fire-and-forget).
type Bus interface {
	PublishModerationRequest(ctx context.Context, itemID int64) error
	PublishDeadLetter(ctx context.Context, dl DeadLetter) error
}

// Scorer is the black-box classifier: a 4-feature vector in, a
// violation probability in [0,1] out.
type Scorer interface {
	Score(ctx context.Context, features [4]float64) (float64, error)
}

// FeatureVector builds the scorer input per the moderation feature
// contract: verified-seller flag, clamped image count, description
// length, and category, each normalized to a comparable scale.
func FeatureVector(l Listing) [4]float64 {
	verified := 0.0
	if l.IsVerifiedSeller {
		verified = 1.0
	}
	images := l.ImagesQty
	if images > 10 {
		images = 10
	}
	return [4]float64{
		verified,
		float64(images) / 10.0,
		float64(len(l.Description)) / 1000.0,
		float64(l.Category) / 100.0,
	}
}
