// ABOUTME: Primary-key identity for admin records: a signed integer or a UUID
// ABOUTME: Parses path segments and JSON values, rejects anything else as a validation error

package admin

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/modeladmin/internal/apierr"
)

// InvalidIDDetail is the validation message for an id that is neither an integer nor a UUID.
const InvalidIDDetail = "Invalid id. It must be a UUID or an integer."

type idKind uint8

const (
	idNone idKind = iota
	idInt
	idUUID
)

// ID identifies one record. The zero value is "no id".
// IDs are comparable and may be used as map keys.
type ID struct {
	kind idKind
	n    int64
	u    uuid.UUID
}

// IntID wraps an integer key.
func IntID(n int64) ID { return ID{kind: idInt, n: n} }

// UUIDID wraps a UUID key.
func UUIDID(u uuid.UUID) ID { return ID{kind: idUUID, u: u} }

// ParseID accepts a decimal integer or a UUID in any form uuid.Parse understands.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, apierr.Validation(InvalidIDDetail)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntID(n), nil
	}
	if u, err := uuid.Parse(s); err == nil {
		return UUIDID(u), nil
	}
	return ID{}, apierr.Validation(InvalidIDDetail)
}

// IDFromValue converts a decoded JSON value or a scanned column value to an ID.
func IDFromValue(v any) (ID, error) {
	switch x := v.(type) {
	case ID:
		if x.IsZero() {
			return ID{}, apierr.Validation(InvalidIDDetail)
		}
		return x, nil
	case int:
		return IntID(int64(x)), nil
	case int32:
		return IntID(int64(x)), nil
	case int64:
		return IntID(x), nil
	case uint:
		return IntID(int64(x)), nil
	case uint32:
		return IntID(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return ID{}, apierr.Validation(InvalidIDDetail)
		}
		return IntID(int64(x)), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > (1<<53) {
			return ID{}, apierr.Validation(InvalidIDDetail)
		}
		return IntID(int64(x)), nil
	case json.Number:
		return ParseID(x.String())
	case string:
		return ParseID(x)
	case []byte:
		if len(x) == 16 {
			u, err := uuid.FromBytes(x)
			if err == nil {
				return UUIDID(u), nil
			}
		}
		return ParseID(string(x))
	case [16]byte:
		return UUIDID(uuid.UUID(x)), nil
	case uuid.UUID:
		return UUIDID(x), nil
	default:
		return ID{}, apierr.Validation(InvalidIDDetail)
	}
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return id.kind == idNone }

// IsUUID reports whether the id is a UUID.
func (id ID) IsUUID() bool { return id.kind == idUUID }

// Int returns the integer key and whether the id is an integer.
func (id ID) Int() (int64, bool) { return id.n, id.kind == idInt }

// UUID returns the UUID key and whether the id is a UUID.
func (id ID) UUID() (uuid.UUID, bool) { return id.u, id.kind == idUUID }

// Value returns the id as an int64, a canonical UUID string, or nil.
// This is the form handed to database drivers and JSON encoders.
func (id ID) Value() any {
	switch id.kind {
	case idInt:
		return id.n
	case idUUID:
		return id.u.String()
	default:
		return nil
	}
}

func (id ID) String() string {
	switch id.kind {
	case idInt:
		return strconv.FormatInt(id.n, 10)
	case idUUID:
		return id.u.String()
	default:
		return ""
	}
}

// MarshalJSON writes integers as numbers and UUIDs as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Value())
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	parsed, err := IDFromValue(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
