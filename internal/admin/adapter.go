// ABOUTME: Query/mutation adapter contract that every data backend implements
// ABOUTME: Defines Row, ListQuery, Filter and SortField shared by the pipeline and adapters

package admin

import (
	"context"
	"fmt"
	"strings"
)

// Row is one record keyed by field name.
type Row = map[string]any

// Adapter translates normalized admin parameters into operations on a
// concrete data model. Implementations must be safe for concurrent use.
type Adapter interface {
	// List returns one page of rows plus the total count before pagination.
	List(ctx context.Context, q ListQuery) ([]Row, int, error)
	// Get returns nil, nil when no row has the id.
	Get(ctx context.Context, id ID) (Row, error)
	// Add inserts a row and returns it as stored, including a generated key.
	Add(ctx context.Context, values Row) (Row, error)
	// Change applies a partial update. It returns nil, nil when no row has the id.
	Change(ctx context.Context, id ID, values Row) (Row, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id ID) (bool, error)
}

// FilterOp is a comparison applied by a Filter.
type FilterOp string

const (
	OpExact     FilterOp = "exact"
	OpIContains FilterOp = "icontains"
	OpIn        FilterOp = "in"
	OpGt        FilterOp = "gt"
	OpGte       FilterOp = "gte"
	OpLt        FilterOp = "lt"
	OpLte       FilterOp = "lte"
	OpIsNull    FilterOp = "isnull"
)

// ParseFilterOp accepts the lookup suffix of a query key ("icontains" in "name__icontains").
func ParseFilterOp(s string) (FilterOp, error) {
	switch op := FilterOp(s); op {
	case OpExact, OpIContains, OpIn, OpGt, OpGte, OpLt, OpLte, OpIsNull:
		return op, nil
	}
	return "", fmt.Errorf("unsupported filter lookup %q", s)
}

// Filter narrows a list to rows whose Field satisfies Op against Value.
// Value is a []any for OpIn and a bool for OpIsNull.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// SortField orders a list by one field.
type SortField struct {
	Field string
	Desc  bool
}

// ParseSort parses "field" or "-field".
func ParseSort(s string) SortField {
	if strings.HasPrefix(s, "-") {
		return SortField{Field: s[1:], Desc: true}
	}
	return SortField{Field: s}
}

func (s SortField) String() string {
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

// ListQuery is the normalized list request handed to adapters.
// Search matches case-insensitively against any of SearchFields.
// Filters are combined with AND. Limit 0 means no limit.
type ListQuery struct {
	Search       string
	SearchFields []string
	Filters      []Filter
	Sort         []SortField
	Offset       int
	Limit        int
}
