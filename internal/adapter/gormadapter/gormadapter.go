// ABOUTME: Generic admin.Adapter over a gorm model struct
// ABOUTME: Reads rows into maps via the parsed schema, creates through T and updates through column maps

package gormadapter

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
	_ "modernc.org/sqlite"

	"github.com/2389/modeladmin/internal/adapter/sqladapter"
	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// Open opens a gorm handle on a SQLite file using the modernc driver.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

// OpenConn wraps an existing SQLite connection pool, so gorm and
// database/sql adapters share one database.
func OpenConn(conn gorm.ConnPool) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		Conn:       conn,
	}, &gorm.Config{})
}

// Adapter implements admin.Adapter for the gorm model T.
type Adapter[T any] struct {
	db     *gorm.DB
	schema *schema.Schema
	pk     *schema.Field
	uuids  bool
}

// Option configures an Adapter.
type Option func(*options)

type options struct {
	uuids bool
}

// WithUUIDKeys fills a random UUID string key when Add is called without one.
func WithUUIDKeys() Option {
	return func(o *options) { o.uuids = true }
}

// New parses T's schema and returns an adapter for it.
func New[T any](db *gorm.DB, opts ...Option) (*Adapter[T], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parsing gorm schema: %w", err)
	}
	pk := stmt.Schema.PrioritizedPrimaryField
	if pk == nil {
		return nil, fmt.Errorf("%s has no primary key", stmt.Schema.Name)
	}
	return &Adapter[T]{db: db, schema: stmt.Schema, pk: pk, uuids: o.uuids}, nil
}

// Columns returns the database column names of T in declaration order.
func (a *Adapter[T]) Columns() []string {
	return a.schema.DBNames
}

// PK returns the primary key column.
func (a *Adapter[T]) PK() string {
	return a.pk.DBName
}

func (a *Adapter[T]) field(name string) (*schema.Field, error) {
	f := a.schema.LookUpField(name)
	if f == nil || f.DBName == "" {
		return nil, apierr.Validationf("unknown field %q", name)
	}
	return f, nil
}

func (a *Adapter[T]) column(name string) (clause.Column, error) {
	f, err := a.field(name)
	if err != nil {
		return clause.Column{}, err
	}
	return clause.Column{Table: clause.CurrentTable, Name: f.DBName}, nil
}

func containsExpr(col clause.Column, term string) clause.Expression {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return clause.Expr{
		SQL:  `LOWER(CAST(? AS TEXT)) LIKE ? ESCAPE '\'`,
		Vars: []any{col, "%" + r.Replace(strings.ToLower(term)) + "%"},
	}
}

// conditions renders search and filters as gorm clause expressions.
func (a *Adapter[T]) conditions(q admin.ListQuery) ([]clause.Expression, error) {
	var exprs []clause.Expression

	if term := strings.TrimSpace(q.Search); term != "" && len(q.SearchFields) > 0 {
		var ors []clause.Expression
		for _, name := range q.SearchFields {
			col, err := a.column(name)
			if err != nil {
				return nil, err
			}
			ors = append(ors, containsExpr(col, term))
		}
		exprs = append(exprs, clause.Or(ors...))
	}

	for _, f := range q.Filters {
		col, err := a.column(f.Field)
		if err != nil {
			return nil, err
		}
		v := sqladapter.BindValue(f.Value)
		switch f.Op {
		case admin.OpExact, "":
			exprs = append(exprs, clause.Eq{Column: col, Value: v})
		case admin.OpIContains:
			exprs = append(exprs, containsExpr(col, fmt.Sprint(f.Value)))
		case admin.OpIn:
			values, _ := f.Value.([]any)
			if len(values) == 0 {
				exprs = append(exprs, clause.Expr{SQL: "1 = 0"})
				continue
			}
			bound := make([]any, len(values))
			for i, x := range values {
				bound[i] = sqladapter.BindValue(x)
			}
			exprs = append(exprs, clause.IN{Column: col, Values: bound})
		case admin.OpGt:
			exprs = append(exprs, clause.Gt{Column: col, Value: v})
		case admin.OpGte:
			exprs = append(exprs, clause.Gte{Column: col, Value: v})
		case admin.OpLt:
			exprs = append(exprs, clause.Lt{Column: col, Value: v})
		case admin.OpLte:
			exprs = append(exprs, clause.Lte{Column: col, Value: v})
		case admin.OpIsNull:
			if want, _ := f.Value.(bool); want {
				exprs = append(exprs, clause.Eq{Column: col, Value: nil})
			} else {
				exprs = append(exprs, clause.Neq{Column: col, Value: nil})
			}
		default:
			return nil, apierr.Validationf("unsupported filter lookup %q", f.Op)
		}
	}
	return exprs, nil
}

func (a *Adapter[T]) byKey(id admin.ID) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: a.pk.DBName}, Value: id.Value()}
}

// List implements admin.Adapter.
func (a *Adapter[T]) List(ctx context.Context, q admin.ListQuery) ([]admin.Row, int, error) {
	exprs, err := a.conditions(q)
	if err != nil {
		return nil, 0, err
	}
	scope := func(db *gorm.DB) *gorm.DB {
		if len(exprs) > 0 {
			db = db.Clauses(clause.Where{Exprs: exprs})
		}
		return db
	}

	var total int64
	if err := a.db.WithContext(ctx).Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", a.schema.Table, err)
	}

	query := a.db.WithContext(ctx).Model(new(T)).Scopes(scope)
	hasPK := false
	for _, s := range q.Sort {
		col, err := a.column(s.Field)
		if err != nil {
			return nil, 0, err
		}
		if col.Name == a.pk.DBName {
			hasPK = true
		}
		query = query.Order(clause.OrderByColumn{Column: col, Desc: s.Desc})
	}
	if !hasPK {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: a.pk.DBName}})
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var items []T
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", a.schema.Table, err)
	}
	rows := make([]admin.Row, len(items))
	for i := range items {
		rows[i] = a.toRow(ctx, &items[i])
	}
	return rows, int(total), nil
}

// Get implements admin.Adapter.
func (a *Adapter[T]) Get(ctx context.Context, id admin.ID) (admin.Row, error) {
	item := new(T)
	err := a.db.WithContext(ctx).Clauses(clause.Where{Exprs: []clause.Expression{a.byKey(id)}}).Take(item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", a.schema.Table, id, err)
	}
	return a.toRow(ctx, item), nil
}

// Add implements admin.Adapter.
func (a *Adapter[T]) Add(ctx context.Context, values admin.Row) (admin.Row, error) {
	item := new(T)
	rv := reflect.ValueOf(item).Elem()
	for name, v := range values {
		f, err := a.field(name)
		if err != nil {
			return nil, err
		}
		if err := f.Set(ctx, rv, sqladapter.BindValue(v)); err != nil {
			return nil, apierr.Validationf("invalid value for %s", name)
		}
	}
	if a.uuids {
		if _, zero := a.pk.ValueOf(ctx, rv); zero {
			if err := a.pk.Set(ctx, rv, uuid.New().String()); err != nil {
				return nil, fmt.Errorf("setting generated key: %w", err)
			}
		}
	}
	if err := a.db.WithContext(ctx).Create(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || sqladapter.IsUniqueViolation(err) {
			return nil, apierr.Validationf("%s with these values already exists", a.schema.Table)
		}
		return nil, fmt.Errorf("creating %s: %w", a.schema.Table, err)
	}
	return a.toRow(ctx, item), nil
}

// Change implements admin.Adapter.
func (a *Adapter[T]) Change(ctx context.Context, id admin.ID, values admin.Row) (admin.Row, error) {
	updates := make(map[string]any, len(values))
	for name, v := range values {
		f, err := a.field(name)
		if err != nil {
			return nil, err
		}
		if f.DBName == a.pk.DBName {
			continue
		}
		updates[f.DBName] = sqladapter.BindValue(v)
	}
	if len(updates) > 0 {
		err := a.db.WithContext(ctx).Model(new(T)).
			Clauses(clause.Where{Exprs: []clause.Expression{a.byKey(id)}}).
			Updates(updates).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || sqladapter.IsUniqueViolation(err) {
				return nil, apierr.Validationf("%s with these values already exists", a.schema.Table)
			}
			return nil, fmt.Errorf("updating %s %s: %w", a.schema.Table, id, err)
		}
	}
	return a.Get(ctx, id)
}

// Delete implements admin.Adapter.
func (a *Adapter[T]) Delete(ctx context.Context, id admin.ID) (bool, error) {
	res := a.db.WithContext(ctx).Clauses(clause.Where{Exprs: []clause.Expression{a.byKey(id)}}).Delete(new(T))
	if res.Error != nil {
		return false, fmt.Errorf("deleting %s %s: %w", a.schema.Table, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// toRow flattens item into column values. Pointers are dereferenced and
// driver.Valuer types are reduced to their stored value.
func (a *Adapter[T]) toRow(ctx context.Context, item *T) admin.Row {
	rv := reflect.ValueOf(item).Elem()
	row := make(admin.Row, len(a.schema.DBNames))
	for _, f := range a.schema.Fields {
		if f.DBName == "" {
			continue
		}
		v, _ := f.ValueOf(ctx, rv)
		row[f.DBName] = plain(v)
	}
	return row
}

func plain(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	if valuer, ok := v.(driver.Valuer); ok {
		out, err := valuer.Value()
		if err != nil {
			return nil
		}
		return out
	}
	return v
}
