// ABOUTME: List operation and translation of query-string parameters into an admin.ListQuery
// ABOUTME: Reserved keys are search, sort_by, offset and limit; every other key is a field filter

package api

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// Reserved list query keys.
const (
	ParamSearch = "search"
	ParamSortBy = "sort_by"
	ParamOffset = "offset"
	ParamLimit  = "limit"
)

// filterSeparator splits "field__op" filter keys.
const filterSeparator = "__"

func isReserved(key string) bool {
	switch key {
	case ParamSearch, ParamSortBy, ParamOffset, ParamLimit:
		return true
	}
	return false
}

// List returns one page of model rows.
func (s *Service) List(ctx context.Context, sessionID, model string, params url.Values) (*ListResult, error) {
	ctx, _, d, err := s.begin(ctx, sessionID, model, admin.OpList, admin.Target{})
	if err != nil {
		return nil, err
	}
	q, err := s.listQuery(d, params, true)
	if err != nil {
		return nil, err
	}
	rows, total, err := d.Adapter.List(ctx, q)
	if err != nil {
		return nil, s.fail(ctx, "list", err)
	}
	results := make([]map[string]any, len(rows))
	for i, row := range rows {
		results[i] = d.Serialize(row)
	}
	return &ListResult{Total: total, Results: results}, nil
}

// listQuery validates params against d. Paging is ignored when paged is false.
func (s *Service) listQuery(d *admin.Descriptor, params url.Values, paged bool) (admin.ListQuery, error) {
	q := admin.ListQuery{
		Search:       strings.TrimSpace(params.Get(ParamSearch)),
		SearchFields: d.SearchFields,
	}

	if sortBy := strings.TrimSpace(params.Get(ParamSortBy)); sortBy != "" {
		for _, part := range strings.Split(sortBy, ",") {
			sf := admin.ParseSort(strings.TrimSpace(part))
			f, ok := d.Field(sf.Field)
			if !ok || !d.Serializable(f) {
				return q, apierr.Validationf("cannot sort by %q", sf.Field)
			}
			q.Sort = append(q.Sort, sf)
		}
	} else {
		q.Sort = d.DefaultSort()
	}

	if paged {
		offset, err := intParam(params, ParamOffset, 0)
		if err != nil {
			return q, err
		}
		if offset < 0 {
			return q, apierr.Validation("offset must not be negative")
		}
		def := s.cfg.DefaultListLimit
		if d.ListPerPage > 0 {
			def = d.ListPerPage
		}
		limit, err := intParam(params, ParamLimit, def)
		if err != nil {
			return q, err
		}
		if limit < 1 {
			return q, apierr.Validation("limit must be positive")
		}
		if limit > s.cfg.MaxListLimit {
			limit = s.cfg.MaxListLimit
		}
		q.Offset, q.Limit = offset, limit
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if !isReserved(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		filter, err := parseFilter(d, key, params.Get(key))
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, filter)
	}
	return q, nil
}

func intParam(params url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(params.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validationf("%s must be an integer", key)
	}
	return n, nil
}

// parseFilter turns "field" or "field__op" and its raw value into a typed filter.
func parseFilter(d *admin.Descriptor, key, raw string) (admin.Filter, error) {
	name, opName, hasOp := strings.Cut(key, filterSeparator)
	op := admin.OpExact
	if hasOp {
		parsed, err := admin.ParseFilterOp(opName)
		if err != nil {
			return admin.Filter{}, apierr.Validationf("unsupported filter %q", key)
		}
		op = parsed
	}
	f, ok := d.Field(name)
	if !ok || !d.Serializable(f) {
		return admin.Filter{}, apierr.Validationf("cannot filter by %q", name)
	}

	filter := admin.Filter{Field: name, Op: op}
	switch op {
	case admin.OpIsNull:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return admin.Filter{}, apierr.Validationf("%s: expected true or false", key)
		}
		filter.Value = b
	case admin.OpIContains:
		filter.Value = raw
	case admin.OpIn:
		var values []any
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := admin.Coerce(f, part)
			if err != nil {
				return admin.Filter{}, err
			}
			values = append(values, v)
		}
		filter.Value = values
	default:
		v, err := admin.Coerce(f, raw)
		if err != nil {
			return admin.Filter{}, err
		}
		filter.Value = v
	}
	return filter, nil
}
