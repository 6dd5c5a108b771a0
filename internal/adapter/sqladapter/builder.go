// ABOUTME: SQL statement builder shared by the database/sql and pgx adapters
// ABOUTME: Whitelists columns, quotes identifiers and renders filters, search, sort and paging

package sqladapter

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// Dialect selects placeholder and paging syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported SQL dialect %q", name)
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Table describes the table behind one model. Columns is the full set of
// columns the adapter may read or write; anything else is rejected.
type Table struct {
	Name    string
	PK      string
	Columns []string
}

// Builder renders parameterised statements for one table.
type Builder struct {
	dialect Dialect
	table   Table
	allowed map[string]bool
}

// NewBuilder validates the table description.
func NewBuilder(dialect Dialect, table Table) (*Builder, error) {
	if table.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if table.PK == "" {
		table.PK = admin.DefaultPrimaryKey
	}
	allowed := make(map[string]bool, len(table.Columns)+1)
	for _, c := range table.Columns {
		allowed[c] = true
	}
	if !allowed[table.PK] {
		table.Columns = append([]string{table.PK}, table.Columns...)
		allowed[table.PK] = true
	}
	return &Builder{dialect: dialect, table: table, allowed: allowed}, nil
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() Dialect { return b.dialect }

// Table returns the table description.
func (b *Builder) Table() Table { return b.table }

// Quote quotes an identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// args collects bind parameters and renders their placeholders.
type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, BindValue(v))
	if a.dialect == Postgres {
		return "$" + strconv.Itoa(len(a.values))
	}
	return "?"
}

// BindValue converts admin values into driver-friendly ones: ids become
// their scalar form, maps and slices are stored as JSON text.
func BindValue(v any) any {
	switch x := v.(type) {
	case nil, string, []byte, bool, int, int32, int64, float32, float64:
		return v
	case admin.ID:
		return x.Value()
	case uuid.UUID:
		return x.String()
	case json.RawMessage:
		return string(x)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return v
}

func (b *Builder) column(name string) (string, error) {
	if !b.allowed[name] {
		return "", apierr.Validationf("unknown field %q", name)
	}
	return Quote(name), nil
}

func (b *Builder) selectList() string {
	cols := make([]string, len(b.table.Columns))
	for i, c := range b.table.Columns {
		cols[i] = Quote(c)
	}
	return strings.Join(cols, ", ")
}

// escapeLike escapes LIKE wildcards in a user-supplied term.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func containsExpr(col string, a *args, term string) string {
	return fmt.Sprintf(`LOWER(CAST(%s AS TEXT)) LIKE %s ESCAPE '\'`, col, a.add("%"+escapeLike(strings.ToLower(term))+"%"))
}

func (b *Builder) where(q admin.ListQuery, a *args) (string, error) {
	var clauses []string

	if term := strings.TrimSpace(q.Search); term != "" && len(q.SearchFields) > 0 {
		var ors []string
		for _, f := range q.SearchFields {
			col, err := b.column(f)
			if err != nil {
				return "", err
			}
			ors = append(ors, containsExpr(col, a, term))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}

	for _, f := range q.Filters {
		col, err := b.column(f.Field)
		if err != nil {
			return "", err
		}
		switch f.Op {
		case admin.OpExact, "":
			if f.Value == nil {
				clauses = append(clauses, col+" IS NULL")
			} else {
				clauses = append(clauses, col+" = "+a.add(f.Value))
			}
		case admin.OpIContains:
			clauses = append(clauses, containsExpr(col, a, fmt.Sprint(f.Value)))
		case admin.OpIn:
			values, _ := f.Value.([]any)
			if len(values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			ph := make([]string, len(values))
			for i, v := range values {
				ph[i] = a.add(v)
			}
			clauses = append(clauses, col+" IN ("+strings.Join(ph, ", ")+")")
		case admin.OpGt:
			clauses = append(clauses, col+" > "+a.add(f.Value))
		case admin.OpGte:
			clauses = append(clauses, col+" >= "+a.add(f.Value))
		case admin.OpLt:
			clauses = append(clauses, col+" < "+a.add(f.Value))
		case admin.OpLte:
			clauses = append(clauses, col+" <= "+a.add(f.Value))
		case admin.OpIsNull:
			if want, _ := f.Value.(bool); want {
				clauses = append(clauses, col+" IS NULL")
			} else {
				clauses = append(clauses, col+" IS NOT NULL")
			}
		default:
			return "", apierr.Validationf("unsupported filter lookup %q", f.Op)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (b *Builder) orderBy(sortFields []admin.SortField) (string, error) {
	var parts []string
	hasPK := false
	for _, s := range sortFields {
		col, err := b.column(s.Field)
		if err != nil {
			return "", err
		}
		if s.Field == b.table.PK {
			hasPK = true
		}
		if s.Desc {
			col += " DESC"
		} else {
			col += " ASC"
		}
		parts = append(parts, col)
	}
	if !hasPK {
		parts = append(parts, Quote(b.table.PK)+" ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (b *Builder) paging(offset, limit int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0 && b.dialect == SQLite:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	case offset > 0:
		return fmt.Sprintf(" OFFSET %d", offset)
	}
	return ""
}

// List renders the page query for q.
func (b *Builder) List(q admin.ListQuery) (string, []any, error) {
	a := &args{dialect: b.dialect}
	where, err := b.where(q, a)
	if err != nil {
		return "", nil, err
	}
	order, err := b.orderBy(q.Sort)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT " + b.selectList() + " FROM " + Quote(b.table.Name) + where + order + b.paging(q.Offset, q.Limit)
	return query, a.values, nil
}

// Count renders the total-count query for q, ignoring sort and paging.
func (b *Builder) Count(q admin.ListQuery) (string, []any, error) {
	a := &args{dialect: b.dialect}
	where, err := b.where(q, a)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + Quote(b.table.Name) + where, a.values, nil
}

// Get renders a single-row lookup by primary key.
func (b *Builder) Get(id admin.ID) (string, []any) {
	a := &args{dialect: b.dialect}
	query := "SELECT " + b.selectList() + " FROM " + Quote(b.table.Name) +
		" WHERE " + Quote(b.table.PK) + " = " + a.add(id) + " LIMIT 1"
	return query, a.values
}

// sortedKeys keeps generated statements deterministic.
func sortedKeys(values admin.Row) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Insert renders an INSERT ... RETURNING statement.
func (b *Builder) Insert(values admin.Row) (string, []any, error) {
	a := &args{dialect: b.dialect}
	keys := sortedKeys(values)
	if len(keys) == 0 {
		return "INSERT INTO " + Quote(b.table.Name) + " DEFAULT VALUES RETURNING " + b.selectList(), nil, nil
	}
	cols := make([]string, len(keys))
	ph := make([]string, len(keys))
	for i, k := range keys {
		col, err := b.column(k)
		if err != nil {
			return "", nil, err
		}
		cols[i] = col
		ph[i] = a.add(values[k])
	}
	query := "INSERT INTO " + Quote(b.table.Name) + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(ph, ", ") + ") RETURNING " + b.selectList()
	return query, a.values, nil
}

// Update renders an UPDATE ... RETURNING statement. The primary key is never updated.
func (b *Builder) Update(id admin.ID, values admin.Row) (string, []any, error) {
	a := &args{dialect: b.dialect}
	var sets []string
	for _, k := range sortedKeys(values) {
		if k == b.table.PK {
			continue
		}
		col, err := b.column(k)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, col+" = "+a.add(values[k]))
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	query := "UPDATE " + Quote(b.table.Name) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + Quote(b.table.PK) + " = " + a.add(id) + " RETURNING " + b.selectList()
	return query, a.values, nil
}

// Delete renders a delete by primary key.
func (b *Builder) Delete(id admin.ID) (string, []any) {
	a := &args{dialect: b.dialect}
	return "DELETE FROM " + Quote(b.table.Name) + " WHERE " + Quote(b.table.PK) + " = " + a.add(id), a.values
}

// IsUniqueViolation reports whether err is a unique-constraint failure on either dialect.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
