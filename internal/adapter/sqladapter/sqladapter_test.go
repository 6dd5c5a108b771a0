// ABOUTME: Tests for the SQL builder and the database/sql adapter on a temporary SQLite file
// ABOUTME: Covers rendering for both dialects, CRUD, search, filters, ordering and paging

package sqladapter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE book (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		author TEXT,
		pages INTEGER,
		in_print INTEGER NOT NULL DEFAULT 1
	)`)
	require.NoError(t, err)
	return db
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(newTestDB(t), SQLite, Table{Name: "book", PK: "id", Columns: []string{"id", "title", "author", "pages", "in_print"}})
	require.NoError(t, err)
	return a
}

func seedBooks(t *testing.T, a *Adapter) {
	t.Helper()
	ctx := context.Background()
	for _, b := range []admin.Row{
		{"title": "Dune", "author": "Frank Herbert", "pages": int64(412), "in_print": true},
		{"title": "Hyperion", "author": "Dan Simmons", "pages": int64(482), "in_print": true},
		{"title": "Solaris", "author": "Stanislaw Lem", "pages": int64(204), "in_print": false},
		{"title": "100% Sci-Fi", "author": nil, "pages": int64(90), "in_print": true},
	} {
		_, err := a.Add(ctx, b)
		require.NoError(t, err)
	}
}

func TestBuilderPostgresPlaceholders(t *testing.T) {
	b, err := NewBuilder(Postgres, Table{Name: "user", Columns: []string{"username", "age"}})
	require.NoError(t, err)

	query, args, err := b.List(admin.ListQuery{
		Search:       "ann",
		SearchFields: []string{"username"},
		Filters:      []admin.Filter{{Field: "age", Op: admin.OpIn, Value: []any{int64(1), int64(2)}}},
		Sort:         []admin.SortField{{Field: "age", Desc: true}},
		Offset:       20,
		Limit:        10,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "username", "age" FROM "user" WHERE (LOWER(CAST("username" AS TEXT)) LIKE $1 ESCAPE '\') AND "age" IN ($2, $3) ORDER BY "age" DESC, "id" ASC LIMIT 10 OFFSET 20`,
		query)
	assert.Equal(t, []any{"%ann%", int64(1), int64(2)}, args)

	query, args, err = b.Update(admin.IntID(7), admin.Row{"id": 9, "username": "x"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "user" SET "username" = $1 WHERE "id" = $2 RETURNING "id", "username", "age"`, query)
	assert.Equal(t, []any{"x", int64(7)}, args)
}

func TestBuilderRejectsUnknownColumns(t *testing.T) {
	b, err := NewBuilder(SQLite, Table{Name: "t", Columns: []string{"id", "name"}})
	require.NoError(t, err)

	_, _, err = b.List(admin.ListQuery{Sort: []admin.SortField{{Field: "name; DROP TABLE t"}}})
	assert.True(t, apierr.IsValidation(err))

	_, _, err = b.Insert(admin.Row{"nope": 1})
	assert.True(t, apierr.IsValidation(err))

	_, _, err = b.Count(admin.ListQuery{Filters: []admin.Filter{{Field: "ghost", Op: admin.OpExact, Value: 1}}})
	assert.True(t, apierr.IsValidation(err))
}

func TestBindValue(t *testing.T) {
	assert.Equal(t, int64(5), BindValue(admin.IntID(5)))
	assert.Equal(t, `{"a":1}`, BindValue(map[string]int{"a": 1}))
	assert.Equal(t, `["x","y"]`, BindValue([]string{"x", "y"}))
	assert.Equal(t, []byte("raw"), BindValue([]byte("raw")))
}

func TestAdapterCRUD(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	row, err := a.Add(ctx, admin.Row{"title": "Dune", "author": "Frank Herbert", "pages": 412})
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "Dune", row["title"])
	assert.Equal(t, int64(1), row["in_print"])

	got, err := a.Get(ctx, admin.IntID(1))
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", got["author"])

	changed, err := a.Change(ctx, admin.IntID(1), admin.Row{"pages": 500})
	require.NoError(t, err)
	assert.Equal(t, int64(500), changed["pages"])
	assert.Equal(t, "Dune", changed["title"])

	unchanged, err := a.Change(ctx, admin.IntID(1), admin.Row{})
	require.NoError(t, err)
	assert.Equal(t, int64(500), unchanged["pages"])

	missing, err := a.Change(ctx, admin.IntID(99), admin.Row{"pages": 1})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = a.Add(ctx, admin.Row{"title": "Dune"})
	assert.True(t, apierr.IsValidation(err))

	deleted, err := a.Delete(ctx, admin.IntID(1))
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = a.Delete(ctx, admin.IntID(1))
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err = a.Get(ctx, admin.IntID(1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAdapterList(t *testing.T) {
	a := newTestAdapter(t)
	seedBooks(t, a)
	ctx := context.Background()

	titles := func(rows []admin.Row) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r["title"].(string)
		}
		return out
	}

	tests := []struct {
		name  string
		query admin.ListQuery
		total int
		want  []string
	}{
		{
			name:  "all in key order",
			total: 4,
			want:  []string{"Dune", "Hyperion", "Solaris", "100% Sci-Fi"},
		},
		{
			name:  "search is case-insensitive across fields",
			query: admin.ListQuery{Search: "SIMMONS", SearchFields: []string{"title", "author"}},
			total: 1,
			want:  []string{"Hyperion"},
		},
		{
			name:  "search escapes wildcards",
			query: admin.ListQuery{Search: "100%", SearchFields: []string{"title"}},
			total: 1,
			want:  []string{"100% Sci-Fi"},
		},
		{
			name:  "numeric comparison and sort",
			query: admin.ListQuery{Filters: []admin.Filter{{Field: "pages", Op: admin.OpGte, Value: int64(400)}}, Sort: []admin.SortField{{Field: "pages", Desc: true}}},
			total: 2,
			want:  []string{"Hyperion", "Dune"},
		},
		{
			name:  "boolean exact",
			query: admin.ListQuery{Filters: []admin.Filter{{Field: "in_print", Op: admin.OpExact, Value: false}}},
			total: 1,
			want:  []string{"Solaris"},
		},
		{
			name:  "isnull",
			query: admin.ListQuery{Filters: []admin.Filter{{Field: "author", Op: admin.OpIsNull, Value: true}}},
			total: 1,
			want:  []string{"100% Sci-Fi"},
		},
		{
			name:  "empty in matches nothing",
			query: admin.ListQuery{Filters: []admin.Filter{{Field: "id", Op: admin.OpIn, Value: []any{}}}},
			total: 0,
			want:  []string{},
		},
		{
			name:  "paging reports the unpaged total",
			query: admin.ListQuery{Sort: []admin.SortField{{Field: "title"}}, Offset: 1, Limit: 2},
			total: 4,
			want:  []string{"Dune", "Hyperion"},
		},
		{
			name:  "offset without limit",
			query: admin.ListQuery{Offset: 3},
			total: 4,
			want:  []string{"100% Sci-Fi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := a.List(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			assert.Equal(t, tt.want, titles(rows))
		})
	}
}

func TestAdapterUUIDKeys(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(`CREATE TABLE event (id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	a, err := New(db, SQLite, Table{Name: "event", Columns: []string{"id", "name"}}, WithUUIDKeys())
	require.NoError(t, err)

	row, err := a.Add(context.Background(), admin.Row{"name": "launch"})
	require.NoError(t, err)

	id, err := admin.IDFromValue(row["id"])
	require.NoError(t, err)
	assert.True(t, id.IsUUID())

	got, err := a.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "launch", got["name"])
}
