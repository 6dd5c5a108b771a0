// ABOUTME: admin.Adapter over database/sql for SQLite (modernc.org/sqlite) and Postgres
// ABOUTME: Executes Builder statements and scans rows into maps keyed by column name

package sqladapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// DBTX is the subset of *sql.DB and *sql.Tx the adapter needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter implements admin.Adapter on one table.
type Adapter struct {
	db      DBTX
	builder *Builder
	uuids   bool
}

// Ensure Adapter implements admin.Adapter.
var _ admin.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithUUIDKeys generates a random UUID primary key when Add is called without one.
func WithUUIDKeys() Option {
	return func(a *Adapter) { a.uuids = true }
}

// New creates an adapter for table on db.
func New(db DBTX, dialect Dialect, table Table, opts ...Option) (*Adapter, error) {
	b, err := NewBuilder(dialect, table)
	if err != nil {
		return nil, err
	}
	a := &Adapter{db: db, builder: b}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// List implements admin.Adapter.
func (a *Adapter) List(ctx context.Context, q admin.ListQuery) ([]admin.Row, int, error) {
	countQuery, countArgs, err := a.builder.Count(q)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := a.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", a.builder.table.Name, err)
	}

	query, args, err := a.builder.List(q)
	if err != nil {
		return nil, 0, err
	}
	rows, err := a.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", a.builder.table.Name, err)
	}
	return rows, total, nil
}

// Get implements admin.Adapter.
func (a *Adapter) Get(ctx context.Context, id admin.ID) (admin.Row, error) {
	query, args := a.builder.Get(id)
	return a.queryOne(ctx, query, args...)
}

// Add implements admin.Adapter.
func (a *Adapter) Add(ctx context.Context, values admin.Row) (admin.Row, error) {
	values = a.withKey(values)
	query, args, err := a.builder.Insert(values)
	if err != nil {
		return nil, err
	}
	row, err := a.queryOne(ctx, query, args...)
	if IsUniqueViolation(err) {
		return nil, apierr.Validationf("%s with these values already exists", a.builder.table.Name)
	}
	return row, err
}

// withKey fills a generated UUID key when configured.
func (a *Adapter) withKey(values admin.Row) admin.Row {
	pk := a.builder.table.PK
	if !a.uuids || values[pk] != nil {
		return values
	}
	out := make(admin.Row, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	out[pk] = uuid.New().String()
	return out
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
	row, err := a.queryOne(ctx, query, args...)
	if IsUniqueViolation(err) {
		return nil, apierr.Validationf("%s with these values already exists", a.builder.table.Name)
	}
	return row, err
}

// Delete implements admin.Adapter.
func (a *Adapter) Delete(ctx context.Context, id admin.ID) (bool, error) {
	query, args := a.builder.Delete(id)
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting from %s: %w", a.builder.table.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

func (a *Adapter) queryOne(ctx context.Context, query string, args ...any) (admin.Row, error) {
	rows, err := a.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (a *Adapter) query(ctx context.Context, query string, args ...any) ([]admin.Row, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows)
}

// ScanRows reads every row into a map. TEXT returned as []byte becomes a string.
func ScanRows(rows *sql.Rows) ([]admin.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []admin.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(admin.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
