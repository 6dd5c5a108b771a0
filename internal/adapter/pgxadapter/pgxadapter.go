// ABOUTME: admin.Adapter over a pgx connection pool for Postgres-backed models
// ABOUTME: Reuses the sqladapter statement builder and collects rows with pgx.RowToMap

package pgxadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/2389/modeladmin/internal/adapter/sqladapter"
	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

// Adapter implements admin.Adapter on one Postgres table.
type Adapter struct {
	db      Querier
	builder *sqladapter.Builder
	uuids   bool
}

var _ admin.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithUUIDKeys generates a random UUID key when Add is called without one.
// Tables with a server-side default (gen_random_uuid()) do not need it.
func WithUUIDKeys() Option {
	return func(a *Adapter) { a.uuids = true }
}

// New creates an adapter for table.
func New(db Querier, table sqladapter.Table, opts ...Option) (*Adapter, error) {
	b, err := sqladapter.NewBuilder(sqladapter.Postgres, table)
	if err != nil {
		return nil, err
	}
	a := &Adapter{db: db, builder: b}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// List implements admin.Adapter.
func (a *Adapter) List(ctx context.Context, q admin.ListQuery) ([]admin.Row, int, error) {
	countSQL, countArgs, err := a.builder.Count(q)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := a.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", a.builder.Table().Name, err)
	}

	listSQL, args, err := a.builder.List(q)
	if err != nil {
		return nil, 0, err
	}
	rows, err := a.collect(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", a.builder.Table().Name, err)
	}
	return rows, int(total), nil
}

// Get implements admin.Adapter.
func (a *Adapter) Get(ctx context.Context, id admin.ID) (admin.Row, error) {
	query, args := a.builder.Get(id)
	return a.collectOne(ctx, query, args...)
}

// Add implements admin.Adapter.
func (a *Adapter) Add(ctx context.Context, values admin.Row) (admin.Row, error) {
	pk := a.builder.Table().PK
	if a.uuids && values[pk] == nil {
		with := make(admin.Row, len(values)+1)
		for k, v := range values {
			with[k] = v
		}
		with[pk] = uuid.New().String()
		values = with
	}
	query, args, err := a.builder.Insert(values)
	if err != nil {
		return nil, err
	}
	row, err := a.collectOne(ctx, query, args...)
	return row, a.translate(err)
}

// Change implements admin.Adapter.
func (a *Adapter) Change(ctx context.Context, id admin.ID, values admin.Row) (admin.Row, error) {
	query, args, err := a.builder.Update(id, values)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return a.Get(ctx, id)
	}
	row, err := a.collectOne(ctx, query, args...)
	return row, a.translate(err)
}

// Delete implements admin.Adapter.
func (a *Adapter) Delete(ctx context.Context, id admin.ID) (bool, error) {
	query, args := a.builder.Delete(id)
	tag, err := a.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting from %s: %w", a.builder.Table().Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (a *Adapter) translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apierr.Validationf("%s with these values already exists", a.builder.Table().Name)
	}
	return err
}

func (a *Adapter) collectOne(ctx context.Context, query string, args ...any) (admin.Row, error) {
	rows, err := a.collect(ctx, query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (a *Adapter) collect(ctx context.Context, query string, args ...any) ([]admin.Row, error) {
	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]admin.Row, len(maps))
	for i, m := range maps {
		for k, v := range m {
			m[k] = normalize(v)
		}
		out[i] = m
	}
	return out, nil
}

// normalize converts pgx decode types into the plain values the admin serializes.
func normalize(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
