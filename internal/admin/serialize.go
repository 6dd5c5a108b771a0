// ABOUTME: Value normalization between adapters, the pipeline and JSON clients
// ABOUTME: Serialize shapes outgoing rows; Coerce converts incoming JSON and query values to field types

package admin

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/modeladmin/internal/apierr"
)

// DateLayout is the wire layout for date fields.
const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999-07:00",
}

// Serialize converts an adapter row into the response shape: only declared,
// serializable fields, with values normalized for JSON.
func (d *Descriptor) Serialize(row Row) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		if !d.Serializable(f) {
			continue
		}
		v := NormalizeValue(f, row[f.Name])
		if f.Format != nil {
			v = f.Format(v)
		}
		out[f.Name] = v
	}
	return out
}

// SerializeFields is Serialize restricted to names, in that order.
func (d *Descriptor) SerializeFields(row Row, names []string) []any {
	values := make([]any, len(names))
	for i, name := range names {
		f, ok := d.Field(name)
		if !ok || !d.Serializable(f) {
			continue
		}
		v := NormalizeValue(f, row[name])
		if f.Format != nil {
			v = f.Format(v)
		}
		values[i] = v
	}
	return values
}

// NormalizeValue maps driver- and adapter-specific representations onto
// the JSON form of f's type.
func NormalizeValue(f Field, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case ID:
		return x.Value()
	case uuid.UUID:
		return x.String()
	case [16]byte:
		return uuid.UUID(x).String()
	case *time.Time:
		if x == nil {
			return nil
		}
		return NormalizeValue(f, *x)
	case time.Time:
		if f.Type == TypeDate {
			return x.Format(DateLayout)
		}
		return x.UTC().Format(time.RFC3339)
	case []byte:
		if f.Type == TypeJSON && json.Valid(x) {
			return json.RawMessage(x)
		}
		return NormalizeValue(f, string(x))
	}

	switch f.Type {
	case TypeBool:
		return Truthy(v)
	case TypeInt:
		if n, ok := toInt64(v); ok {
			return n
		}
	case TypeFloat:
		if n, ok := toFloat64(v); ok {
			return n
		}
	case TypeDateTime, TypeDate:
		if s, ok := v.(string); ok {
			if t, err := parseTime(f.Type, s); err == nil {
				return NormalizeValue(f, t)
			}
		}
	case TypeJSON:
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
	}
	return v
}

// Coerce converts an incoming JSON or query-string value to the Go type
// adapters expect for f: string, int64, float64, bool, time.Time, or any for JSON.
func Coerce(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := coerce(f, v)
	if err != nil {
		return nil, err
	}
	if len(f.Choices) > 0 && !matchesChoice(f.Choices, out) {
		return nil, apierr.Validationf("%s: %v is not a valid choice", f.Name, v)
	}
	return out, nil
}

func coerce(f Field, v any) (any, error) {
	switch f.Type {
	case TypeString, TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, apierr.Validationf("%s: expected a string", f.Name)
		}
		return s, nil
	case TypeUUID:
		s, ok := v.(string)
		if !ok {
			return nil, apierr.Validationf("%s: expected a UUID string", f.Name)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, apierr.Validationf("%s: %q is not a valid UUID", f.Name, s)
		}
		return u.String(), nil
	case TypeInt:
		if s, ok := v.(string); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, apierr.Validationf("%s: %q is not an integer", f.Name, s)
			}
			return n, nil
		}
		n, ok := toInt64(v)
		if !ok {
			return nil, apierr.Validationf("%s: expected an integer", f.Name)
		}
		return n, nil
	case TypeFloat:
		if s, ok := v.(string); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, apierr.Validationf("%s: %q is not a number", f.Name, s)
			}
			return n, nil
		}
		n, ok := toFloat64(v)
		if !ok {
			return nil, apierr.Validationf("%s: expected a number", f.Name)
		}
		return n, nil
	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, apierr.Validationf("%s: %q is not a boolean", f.Name, x)
			}
			return b, nil
		case json.Number:
			switch x.String() {
			case "0":
				return false, nil
			case "1":
				return true, nil
			}
		case float64:
			if x == 0 || x == 1 {
				return x == 1, nil
			}
		}
		return nil, apierr.Validationf("%s: expected a boolean", f.Name)
	case TypeDate, TypeDateTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			t, err := parseTime(f.Type, x)
			if err != nil {
				return nil, apierr.Validationf("%s: %q is not a valid %s", f.Name, x, f.Type)
			}
			return t, nil
		}
		return nil, apierr.Validationf("%s: expected a %s string", f.Name, f.Type)
	default:
		return v, nil
	}
}

func parseTime(t FieldType, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t == TypeDate {
		if d, err := time.Parse(DateLayout, s); err == nil {
			return d, nil
		}
	}
	var lastErr error
	for _, layout := range dateTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			if t == TypeDate {
				y, m, d := parsed.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
			}
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func matchesChoice(choices []Choice, v any) bool {
	want := fmt.Sprint(v)
	for _, c := range choices {
		if fmt.Sprint(c.Value) == want {
			return true
		}
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return toInt64(float64(x))
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		n, err := x.Float64()
		return n, err == nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
