package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow implements pgx.Row over a fixed set of values or an error.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return errors.New("fakeRow: scan arity mismatch")
	}
	for i, d := range dest {
		if err := assignInto(d, r.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func assignInto(dest, val any) error {
	switch d := dest.(type) {
	case *int64:
		if val == nil {
			*d = 0
			return nil
		}
		*d = val.(int64)
	case *string:
		if val == nil {
			*d = ""
			return nil
		}
		*d = val.(string)
	case *bool:
		if val == nil {
			*d = false
			return nil
		}
		*d = val.(bool)
	case *int:
		if val == nil {
			*d = 0
			return nil
		}
		*d = val.(int)
	case **bool:
		if val == nil {
			*d = nil
			return nil
		}
		v := val.(bool)
		*d = &v
	case **float64:
		if val == nil {
			*d = nil
			return nil
		}
		v := val.(float64)
		*d = &v
	case **string:
		if val == nil {
			*d = nil
			return nil
		}
		v := val.(string)
		*d = &v
	default:
		return errFakeRowUnsupported
	}
	return nil
}

var errFakeRowUnsupported = errors.New("fakeRow: unsupported dest type")

// fakePool is a scripted PgxPool for unit tests that never hit a real database.
type fakePool struct {
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	beginTxFn  func(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if p.execFn != nil {
		return p.execFn(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.queryFn != nil {
		return p.queryFn(ctx, sql, args...)
	}
	return nil, errors.New("fakePool: Query not configured")
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if p.queryRowFn != nil {
		return p.queryRowFn(ctx, sql, args...)
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (p *fakePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if p.beginTxFn != nil {
		return p.beginTxFn(ctx, opts)
	}
	return nil, errors.New("fakePool: BeginTx not configured")
}

// fakeTx implements pgx.Tx, delegating single-row/exec calls to scripted funcs
// and treating Commit/Rollback as no-ops that record which happened.
type fakeTx struct {
	pgx.Tx
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	committed  *bool
	rolledback *bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if t.queryRowFn != nil {
		return t.queryRowFn(ctx, sql, args...)
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.execFn != nil {
		return t.execFn(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if t.queryFn != nil {
		return t.queryFn(ctx, sql, args...)
	}
	return nil, errors.New("fakeTx: Query not configured")
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.committed != nil {
		*t.committed = true
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.rolledback != nil {
		*t.rolledback = true
	}
	return nil
}

// fakeRows implements pgx.Rows over a fixed slice of row value-tuples.
type fakeRows struct {
	data []([]any)
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("fakeRows: scan arity mismatch")
	}
	for i, d := range dest {
		if err := assignInto(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }
