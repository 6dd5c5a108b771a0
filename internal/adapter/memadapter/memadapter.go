// ABOUTME: In-memory admin adapter for tests, demos and configuration-free deployments
// ABOUTME: Evaluates search, filters, ordering and pagination over copied rows under a RWMutex

package memadapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// Adapter stores rows in a map keyed by primary key.
type Adapter struct {
	mu     sync.RWMutex
	pk     string
	rows   map[admin.ID]admin.Row
	nextID int64
	uuids  bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithUUIDKeys generates random UUID keys instead of sequential integers.
func WithUUIDKeys() Option {
	return func(a *Adapter) { a.uuids = true }
}

// New creates an empty adapter whose rows are keyed by pk.
func New(pk string, opts ...Option) *Adapter {
	a := &Adapter{
		pk:   pk,
		rows: make(map[admin.ID]admin.Row),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Len returns the number of stored rows.
func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.rows)
}

// List implements admin.Adapter.
func (a *Adapter) List(ctx context.Context, q admin.ListQuery) ([]admin.Row, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	a.mu.RLock()
	matched := make([]admin.Row, 0, len(a.rows))
	for _, row := range a.rows {
		if !matchesSearch(row, q.SearchFields, q.Search) {
			continue
		}
		if !matchesFilters(row, q.Filters) {
			continue
		}
		matched = append(matched, copyRow(row))
	}
	a.mu.RUnlock()

	sortRows(matched, q.Sort, a.pk)

	total := len(matched)
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return matched[start:end], total, nil
}

// Get implements admin.Adapter.
func (a *Adapter) Get(ctx context.Context, id admin.ID) (admin.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	row, ok := a.rows[id]
	if !ok {
		return nil, nil
	}
	return copyRow(row), nil
}

// Add implements admin.Adapter. A missing key is generated.
func (a *Adapter) Add(ctx context.Context, values admin.Row) (admin.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	row := copyRow(values)
	var id admin.ID
	if raw, ok := row[a.pk]; ok && raw != nil {
		parsed, err := admin.IDFromValue(raw)
		if err != nil {
			return nil, err
		}
		if _, exists := a.rows[parsed]; exists {
			return nil, apierr.Validationf("%s %s already exists", a.pk, parsed)
		}
		id = parsed
		if n, ok := parsed.Int(); ok && n > a.nextID {
			a.nextID = n
		}
	} else if a.uuids {
		id = admin.UUIDID(uuid.New())
	} else {
		a.nextID++
		id = admin.IntID(a.nextID)
	}
	row[a.pk] = id.Value()

	a.rows[id] = row
	return copyRow(row), nil
}

// Change implements admin.Adapter.
func (a *Adapter) Change(ctx context.Context, id admin.ID, values admin.Row) (admin.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	row, ok := a.rows[id]
	if !ok {
		return nil, nil
	}
	for k, v := range values {
		if k == a.pk {
			continue
		}
		row[k] = v
	}
	return copyRow(row), nil
}

// Delete implements admin.Adapter.
func (a *Adapter) Delete(ctx context.Context, id admin.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.rows[id]; !ok {
		return false, nil
	}
	delete(a.rows, id)
	return true, nil
}

// copyRow prevents callers from mutating stored state.
func copyRow(row admin.Row) admin.Row {
	out := make(admin.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func matchesSearch(row admin.Row, fields []string, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		v := row[f]
		if v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(text(v)), term) {
			return true
		}
	}
	return false
}

func matchesFilters(row admin.Row, filters []admin.Filter) bool {
	for _, f := range filters {
		if !matchesFilter(row[f.Field], f) {
			return false
		}
	}
	return true
}

func matchesFilter(v any, f admin.Filter) bool {
	switch f.Op {
	case admin.OpIsNull:
		want, _ := f.Value.(bool)
		return (v == nil) == want
	case admin.OpIContains:
		if v == nil {
			return false
		}
		return strings.Contains(strings.ToLower(text(v)), strings.ToLower(text(f.Value)))
	case admin.OpIn:
		values, _ := f.Value.([]any)
		for _, want := range values {
			if compare(v, want) == 0 {
				return true
			}
		}
		return false
	}

	if v == nil {
		return false
	}
	c := compare(v, f.Value)
	switch f.Op {
	case admin.OpGt:
		return c > 0
	case admin.OpGte:
		return c >= 0
	case admin.OpLt:
		return c < 0
	case admin.OpLte:
		return c <= 0
	default:
		return c == 0
	}
}

// sortRows orders by the requested fields with the primary key as final tiebreaker.
func sortRows(rows []admin.Row, order []admin.SortField, pk string) {
	keys := append([]admin.SortField(nil), order...)
	hasPK := false
	for _, k := range keys {
		if k.Field == pk {
			hasPK = true
		}
	}
	if !hasPK {
		keys = append(keys, admin.SortField{Field: pk})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compare(rows[i][k.Field], rows[j][k.Field])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders nil first, then numbers, times, bools and strings by value.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		bb := admin.Truthy(b)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return strings.Compare(text(a), text(b))
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
