// ABOUTME: Tests for ids, descriptor validation and value serialization
// ABOUTME: Uses a no-op adapter so descriptors can be validated in isolation

package admin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/modeladmin/internal/apierr"
)

type nopAdapter struct{}

func (nopAdapter) List(context.Context, ListQuery) ([]Row, int, error) { return nil, 0, nil }
func (nopAdapter) Get(context.Context, ID) (Row, error)                { return nil, nil }
func (nopAdapter) Add(_ context.Context, r Row) (Row, error)           { return r, nil }
func (nopAdapter) Change(context.Context, ID, Row) (Row, error)        { return nil, nil }
func (nopAdapter) Delete(context.Context, ID) (bool, error)            { return false, nil }

func validDescriptor() *Descriptor {
	return &Descriptor{
		Name: "user",
		Fields: []Field{
			{Name: "id", Type: TypeInt, ReadOnly: true},
			{Name: "username", Type: TypeString, Required: true},
			{Name: "password", Type: TypeString, Widget: WidgetPassword},
			{Name: "is_superuser", Type: TypeBool},
			{Name: "joined", Type: TypeDateTime},
		},
		ListDisplay:  []string{"id", "username"},
		SearchFields: []string{"username"},
		Ordering:     []string{"-joined"},
		Adapter:      nopAdapter{},
		User:         &UserModel{SuperuserField: "is_superuser"},
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	n, ok := id.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	u := uuid.New()
	id, err = ParseID(u.String())
	require.NoError(t, err)
	assert.True(t, id.IsUUID())
	assert.Equal(t, u.String(), id.Value())

	for _, bad := range []string{"", "abc", "1.5", "12abc"} {
		_, err := ParseID(bad)
		assert.True(t, apierr.IsValidation(err), "input %q", bad)
		assert.Equal(t, InvalidIDDetail, apierr.Detail(err))
	}
}

func TestIDJSON(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`[1, "7", "3f2b6f0e-6d0a-4d2e-9a55-7f9a1a3b0c11"]`), &ids))
	require.Len(t, ids, 3)
	assert.Equal(t, IntID(1), ids[0])
	assert.Equal(t, IntID(7), ids[1])
	assert.True(t, ids[2].IsUUID())

	out, err := json.Marshal(ids[:2])
	require.NoError(t, err)
	assert.JSONEq(t, `[1, 7]`, string(out))

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &bad))
}

func TestIDFromValue(t *testing.T) {
	u := uuid.New()
	cases := []any{int64(3), 3, float64(3), "3", json.Number("3")}
	for _, c := range cases {
		id, err := IDFromValue(c)
		require.NoError(t, err, "%T", c)
		assert.Equal(t, IntID(3), id)
	}
	id, err := IDFromValue([16]byte(u))
	require.NoError(t, err)
	assert.Equal(t, UUIDID(u), id)

	_, err = IDFromValue(true)
	assert.Error(t, err)
}

func TestDescriptorValidate(t *testing.T) {
	require.NoError(t, validDescriptor().Validate())

	tests := []struct {
		name   string
		mutate func(d *Descriptor)
	}{
		{"missing name", func(d *Descriptor) { d.Name = "" }},
		{"slash in name", func(d *Descriptor) { d.Name = "a/b" }},
		{"no adapter", func(d *Descriptor) { d.Adapter = nil }},
		{"no fields", func(d *Descriptor) { d.Fields = nil }},
		{"duplicate field", func(d *Descriptor) { d.Fields = append(d.Fields, Field{Name: "id", Type: TypeInt}) }},
		{"unknown type", func(d *Descriptor) { d.Fields[1].Type = "varchar" }},
		{"missing pk", func(d *Descriptor) { d.PrimaryKey = "uuid" }},
		{"list_display typo", func(d *Descriptor) { d.ListDisplay = []string{"usernme"} }},
		{"list_filter typo", func(d *Descriptor) { d.ListFilter = []string{"nope"} }},
		{"search typo", func(d *Descriptor) { d.SearchFields = []string{"email"} }},
		{"ordering typo", func(d *Descriptor) { d.Ordering = []string{"-created"} }},
		{"fieldset typo", func(d *Descriptor) { d.Fieldsets = []Fieldset{{Name: "main", Fields: []string{"x"}}} }},
		{"duplicate action", func(d *Descriptor) { d.Actions = []Action{DeleteSelected(), DeleteSelected()} }},
		{"action without handler", func(d *Descriptor) { d.Actions = []Action{{Name: "go"}} }},
		{"inline without fk", func(d *Descriptor) { d.Inlines = []Inline{{Descriptor: validDescriptor()}} }},
		{"user model typo", func(d *Descriptor) { d.User = &UserModel{UsernameField: "email"} }},
		{"negative page size", func(d *Descriptor) { d.ListPerPage = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, apierr.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestWidgetResolution(t *testing.T) {
	d := validDescriptor()
	d.FormfieldOverrides = map[FieldType]Widget{TypeString: WidgetSlug}

	username, _ := d.Field("username")
	password, _ := d.Field("password")
	joined, _ := d.Field("joined")

	assert.Equal(t, WidgetSlug, d.WidgetFor(username))
	assert.Equal(t, WidgetPassword, d.WidgetFor(password))
	assert.Equal(t, WidgetDateTimePicker, d.WidgetFor(joined))
}

func TestSerializeDropsSecretsAndNormalizes(t *testing.T) {
	d := validDescriptor()
	joined := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	out := d.Serialize(Row{
		"id":           int32(5),
		"username":     "root",
		"password":     "$2a$10$hash",
		"is_superuser": int64(1),
		"joined":       joined,
		"extra":        "not declared",
	})

	assert.Equal(t, map[string]any{
		"id":           int64(5),
		"username":     "root",
		"is_superuser": true,
		"joined":       "2024-03-01T10:30:00Z",
	}, out)
	assert.Nil(t, d.Serialize(nil))
}

func TestCoerce(t *testing.T) {
	intField := Field{Name: "n", Type: TypeInt}
	v, err := Coerce(intField, float64(12))
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = Coerce(intField, "12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	_, err = Coerce(intField, 1.5)
	assert.True(t, apierr.IsValidation(err))

	boolField := Field{Name: "b", Type: TypeBool}
	v, err = Coerce(boolField, "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)
	v, err = Coerce(boolField, json.Number("1"))
	require.NoError(t, err)
	assert.Equal(t, true, v)
	v, err = Coerce(boolField, json.Number("0"))
	require.NoError(t, err)
	assert.Equal(t, false, v)
	_, err = Coerce(boolField, json.Number("2"))
	assert.True(t, apierr.IsValidation(err))

	dateField := Field{Name: "d", Type: TypeDate}
	v, err = Coerce(dateField, "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), v)

	dtField := Field{Name: "dt", Type: TypeDateTime}
	v, err = Coerce(dtField, "2024-02-29 08:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), v)

	_, err = Coerce(Field{Name: "s", Type: TypeString}, 3.0)
	assert.True(t, apierr.IsValidation(err))

	choice := Field{Name: "c", Type: TypeString, Choices: []Choice{{Value: "a", Label: "A"}}}
	_, err = Coerce(choice, "b")
	assert.True(t, apierr.IsValidation(err))

	v, err = Coerce(intField, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestUserFromRow(t *testing.T) {
	um := UserModel{SuperuserField: "is_superuser", ActiveField: "is_active", RolesField: "roles"}
	u, err := um.UserFromRow("id", Row{
		"id":           int64(9),
		"username":     "ada",
		"is_superuser": int64(1),
		"is_active":    false,
		"roles":        "editor, viewer",
	})
	require.NoError(t, err)

	assert.Equal(t, IntID(9), u.ID)
	assert.Equal(t, "ada", u.Username)
	assert.True(t, u.IsSuperuser)
	assert.False(t, u.IsActive)
	assert.True(t, u.HasRole("viewer"))
	assert.False(t, u.HasRole("owner"))

	_, err = um.UserFromRow("id", Row{"id": "not-an-id"})
	assert.Error(t, err)
}

func TestDeleteSelected(t *testing.T) {
	deleted := map[ID]bool{}
	d := validDescriptor()
	d.Adapter = deleteRecorder{deleted: deleted}

	action := DeleteSelected()
	require.NoError(t, action.Handler(context.Background(), d, []ID{IntID(1), IntID(2)}))
	assert.Len(t, deleted, 2)
}

type deleteRecorder struct {
	nopAdapter
	deleted map[ID]bool
}

func (r deleteRecorder) Delete(_ context.Context, id ID) (bool, error) {
	r.deleted[id] = true
	return true, nil
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, UserFromContext(ctx))

	u := &User{Username: "ada"}
	assert.Same(t, u, UserFromContext(WithUser(ctx, u)))
}
