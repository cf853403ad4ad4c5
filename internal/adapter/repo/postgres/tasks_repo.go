package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blausher/modsvc/internal/domain"
)

const maxErrorMessageLen = 1000

// TaskRepo implements domain.TaskRepository over a pgx pool.
type TaskRepo struct{ Pool PgxPool }

// NewTaskRepo constructs a TaskRepo.
func NewTaskRepo(p PgxPool) *TaskRepo { return &TaskRepo{Pool: p} }

// CreatePending returns the existing pending-or-completed Task for itemID
// when one exists (pending wins, ties broken by highest id), otherwise
// inserts a new pending Task. The partial unique index on (item_id) WHERE
// status='pending' collapses the race between the read and the insert: on
// conflict we re-read once, matching the spec's reuse-or-insert contract.
func (r *TaskRepo) CreatePending(ctx context.Context, itemID int64) (domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.CreatePending")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "moderation_results"))

	if t, ok, err := r.selectExisting(ctx, itemID); err != nil {
		return domain.Task{}, fmt.Errorf("op=task.create_pending.select: %w", err)
	} else if ok {
		return t, nil
	}

	q := `INSERT INTO moderation_results (item_id, status) VALUES ($1, 'pending')
	      RETURNING id, item_id, status, is_violation, probability, error_message, created_at, processed_at`
	t, err := scanTask(r.Pool.QueryRow(ctx, q, itemID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if t2, ok, err2 := r.selectExisting(ctx, itemID); err2 == nil && ok {
				return t2, nil
			}
		}
		return domain.Task{}, fmt.Errorf("op=task.create_pending.insert: %w", err)
	}
	return t, nil
}

// selectExisting returns the pending task with the highest id if one exists,
// otherwise the completed task with the highest id, otherwise ok=false.
// Failed tasks are never returned.
func (r *TaskRepo) selectExisting(ctx context.Context, itemID int64) (domain.Task, bool, error) {
	q := `SELECT id, item_id, status, is_violation, probability, error_message, created_at, processed_at
	      FROM moderation_results
	      WHERE item_id = $1 AND status IN ('pending', 'completed')
	      ORDER BY (status = 'pending') DESC, id DESC
	      LIMIT 1`
	t, err := scanTask(r.Pool.QueryRow(ctx, q, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, err
	}
	return t, true, nil
}

// GetTask loads a Task by id.
func (r *TaskRepo) GetTask(ctx context.Context, taskID int64) (domain.Task, bool, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.GetTask")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "moderation_results"))

	q := `SELECT id, item_id, status, is_violation, probability, error_message, created_at, processed_at
	      FROM moderation_results WHERE id = $1`
	t, err := scanTask(r.Pool.QueryRow(ctx, q, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, fmt.Errorf("op=task.get: %w", err)
	}
	return t, true, nil
}

// ClaimAndComplete exclusively claims the oldest pending Task for itemID and
// transitions it to completed.
func (r *TaskRepo) ClaimAndComplete(ctx context.Context, itemID int64, isViolation bool, probability float64) (int64, bool, error) {
	return r.claim(ctx, itemID, `
		UPDATE moderation_results SET status='completed', is_violation=$2, probability=$3, processed_at=now()
		WHERE id = (
			SELECT id FROM moderation_results
			WHERE item_id = $1 AND status = 'pending'
			ORDER BY id ASC LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id`, "tasks.ClaimAndComplete", isViolation, probability)
}

// ClaimAndFail exclusively claims the oldest pending Task for itemID and
// transitions it to failed with errMessage (truncated to 1000 chars).
func (r *TaskRepo) ClaimAndFail(ctx context.Context, itemID int64, errMessage string) (int64, bool, error) {
	if len(errMessage) > maxErrorMessageLen {
		errMessage = errMessage[:maxErrorMessageLen]
	}
	return r.claim(ctx, itemID, `
		UPDATE moderation_results SET status='failed', error_message=$2, processed_at=now()
		WHERE id = (
			SELECT id FROM moderation_results
			WHERE item_id = $1 AND status = 'pending'
			ORDER BY id ASC LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id`, "tasks.ClaimAndFail", errMessage)
}

func (r *TaskRepo) claim(ctx context.Context, itemID int64, query, spanName string, args ...any) (int64, bool, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "moderation_results"))

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, false, fmt.Errorf("op=%s.begin_tx: %w", spanName, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	callArgs := append([]any{itemID}, args...)
	var id int64
	err = tx.QueryRow(ctx, query, callArgs...).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if cerr := tx.Commit(ctx); cerr != nil {
				return 0, false, fmt.Errorf("op=%s.commit: %w", spanName, cerr)
			}
			committed = true
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("op=%s.exec: %w", spanName, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("op=%s.commit: %w", spanName, err)
	}
	committed = true
	return id, true, nil
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	var status string
	if err := row.Scan(&t.ID, &t.ItemID, &status, &t.IsViolation, &t.Probability, &t.ErrorMessage, &t.CreatedAt, &t.ProcessedAt); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskStatus(status)
	return t, nil
}
