// ABOUTME: Tests for the in-memory adapter
// ABOUTME: Covers key generation, search, filter lookups, stable ordering and copy isolation

package memadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/modeladmin/internal/admin"
)

func seed(t *testing.T) *Adapter {
	t.Helper()
	a := New("id")
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"alice", "bob", "carol", "dave", "Alfred"} {
		_, err := a.Add(ctx, admin.Row{
			"name":    name,
			"age":     int64(20 + i%3),
			"active":  i%2 == 0,
			"joined":  base.Add(time.Duration(i) * time.Hour),
			"comment": nil,
		})
		require.NoError(t, err)
	}
	return a
}

func names(rows []admin.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["name"].(string)
	}
	return out
}

func TestAddAssignsSequentialKeys(t *testing.T) {
	a := seed(t)
	row, err := a.Add(context.Background(), admin.Row{"name": "eve"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), row["id"])

	_, err = a.Add(context.Background(), admin.Row{"id": int64(6), "name": "dup"})
	assert.Error(t, err)

	row, err = a.Add(context.Background(), admin.Row{"id": int64(40), "name": "explicit"})
	require.NoError(t, err)
	assert.Equal(t, int64(40), row["id"])

	row, err = a.Add(context.Background(), admin.Row{"name": "after"})
	require.NoError(t, err)
	assert.Equal(t, int64(41), row["id"])
}

func TestUUIDKeys(t *testing.T) {
	a := New("id", WithUUIDKeys())
	row, err := a.Add(context.Background(), admin.Row{"name": "x"})
	require.NoError(t, err)

	id, err := admin.IDFromValue(row["id"])
	require.NoError(t, err)
	assert.True(t, id.IsUUID())

	got, err := a.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "x", got["name"])
}

func TestListSearchAndPagination(t *testing.T) {
	a := seed(t)
	ctx := context.Background()

	rows, total, err := a.List(ctx, admin.ListQuery{Search: "AL", SearchFields: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"alice", "Alfred"}, names(rows))

	rows, total, err = a.List(ctx, admin.ListQuery{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"bob", "carol"}, names(rows))

	rows, total, err = a.List(ctx, admin.ListQuery{Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, rows)
}

func TestListFilters(t *testing.T) {
	a := seed(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters []admin.Filter
		want    []string
	}{
		{"exact", []admin.Filter{{Field: "age", Op: admin.OpExact, Value: int64(21)}}, []string{"bob", "Alfred"}},
		{"and", []admin.Filter{
			{Field: "age", Op: admin.OpExact, Value: int64(20)},
			{Field: "active", Op: admin.OpExact, Value: true},
		}, []string{"alice"}},
		{"icontains", []admin.Filter{{Field: "name", Op: admin.OpIContains, Value: "AR"}}, []string{"carol"}},
		{"in", []admin.Filter{{Field: "name", Op: admin.OpIn, Value: []any{"bob", "dave"}}}, []string{"bob", "dave"}},
		{"gte", []admin.Filter{{Field: "age", Op: admin.OpGte, Value: int64(22)}}, []string{"carol"}},
		{"lt time", []admin.Filter{{Field: "joined", Op: admin.OpLt, Value: time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)}}, []string{"alice", "bob"}},
		{"isnull", []admin.Filter{{Field: "comment", Op: admin.OpIsNull, Value: true}}, []string{"alice", "bob", "carol", "dave", "Alfred"}},
		{"not null", []admin.Filter{{Field: "comment", Op: admin.OpIsNull, Value: false}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := a.List(ctx, admin.ListQuery{Filters: tt.filters})
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			assert.Equal(t, tt.want, names(rows))
		})
	}
}

func TestListOrderingIsStable(t *testing.T) {
	a := seed(t)
	ctx := context.Background()

	rows, _, err := a.List(ctx, admin.ListQuery{Sort: []admin.SortField{{Field: "age", Desc: true}}})
	require.NoError(t, err)
	// ties on age fall back to ascending id
	assert.Equal(t, []string{"carol", "bob", "Alfred", "alice", "dave"}, names(rows))

	page1, _, err := a.List(ctx, admin.ListQuery{Sort: []admin.SortField{{Field: "age"}}, Limit: 2})
	require.NoError(t, err)
	page2, _, err := a.List(ctx, admin.ListQuery{Sort: []admin.SortField{{Field: "age"}}, Offset: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "dave", "bob", "Alfred", "carol"}, append(names(page1), names(page2)...))
}

func TestChangeAndDelete(t *testing.T) {
	a := seed(t)
	ctx := context.Background()

	row, err := a.Change(ctx, admin.IntID(2), admin.Row{"name": "robert", "id": int64(99)})
	require.NoError(t, err)
	assert.Equal(t, "robert", row["name"])
	assert.Equal(t, int64(2), row["id"])

	row, err = a.Change(ctx, admin.IntID(404), admin.Row{"name": "ghost"})
	require.NoError(t, err)
	assert.Nil(t, row)

	ok, err := a.Delete(ctx, admin.IntID(2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Delete(ctx, admin.IntID(2))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, a.Len())
}

func TestReturnedRowsAreCopies(t *testing.T) {
	a := seed(t)
	ctx := context.Background()

	row, err := a.Get(ctx, admin.IntID(1))
	require.NoError(t, err)
	row["name"] = "mutated"

	again, err := a.Get(ctx, admin.IntID(1))
	require.NoError(t, err)
	assert.Equal(t, "alice", again["name"])
}

func TestCancelledContext(t *testing.T) {
	a := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := a.List(ctx, admin.ListQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}
