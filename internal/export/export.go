// ABOUTME: Export formats that stream admin rows into downloadable files
// ABOUTME: CSV and JSON writers share one RowWriter contract so exports never buffer whole tables

package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Format describes one export file type.
type Format interface {
	Name() string
	ContentType() string
	Extension() string
	// NewWriter starts a file with the given column order.
	NewWriter(w io.Writer, fields []string) (RowWriter, error)
}

// RowWriter appends rows to an export. Close finishes the file but does
// not close the underlying writer.
type RowWriter interface {
	WriteRow(values []any) error
	Close() error
}

// DefaultFormat is used when a request names no format.
const DefaultFormat = "csv"

var formats = map[string]Format{
	"csv":  CSV{},
	"json": JSON{},
}

// Lookup returns the format registered under name.
func Lookup(name string) (Format, bool) {
	if name == "" {
		name = DefaultFormat
	}
	f, ok := formats[name]
	return f, ok
}

// Names lists the supported format names.
func Names() []string {
	names := make([]string, 0, len(formats))
	for n := range formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FileName is the download name for a model export.
func FileName(model string, f Format) string {
	return model + "." + f.Extension()
}

// CSV writes RFC 4180 CSV with a header row.
type CSV struct{}

func (CSV) Name() string        { return "csv" }
func (CSV) ContentType() string { return "text/csv" }
func (CSV) Extension() string   { return "csv" }

func (CSV) NewWriter(w io.Writer, fields []string) (RowWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	return &csvWriter{w: cw, record: make([]string, len(fields))}, nil
}

type csvWriter struct {
	w      *csv.Writer
	record []string
	rows   int
}

func (c *csvWriter) WriteRow(values []any) error {
	for i := range c.record {
		if i < len(values) {
			c.record[i] = Cell(values[i])
		} else {
			c.record[i] = ""
		}
	}
	if err := c.w.Write(c.record); err != nil {
		return err
	}
	c.rows++
	// flush periodically so large exports reach the client while streaming
	if c.rows%100 == 0 {
		c.w.Flush()
		return c.w.Error()
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

// Cell renders one value as CSV text.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// JSON writes a JSON array of objects, one per row.
type JSON struct{}

func (JSON) Name() string        { return "json" }
func (JSON) ContentType() string { return "application/json" }
func (JSON) Extension() string   { return "json" }

func (JSON) NewWriter(w io.Writer, fields []string) (RowWriter, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return nil, err
	}
	return &jsonWriter{w: w, fields: fields}, nil
}

type jsonWriter struct {
	w      io.Writer
	fields []string
	n      int
}

func (j *jsonWriter) WriteRow(values []any) error {
	obj := make(map[string]any, len(j.fields))
	for i, f := range j.fields {
		if i < len(values) {
			obj[f] = values[i]
		} else {
			obj[f] = nil
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encoding export row: %w", err)
	}
	if j.n > 0 {
		if _, err := io.WriteString(j.w, ","); err != nil {
			return err
		}
	}
	j.n++
	_, err = j.w.Write(b)
	return err
}

func (j *jsonWriter) Close() error {
	_, err := io.WriteString(j.w, "]")
	return err
}
