// ABOUTME: Admin descriptor: per-model presentation and behaviour configuration
// ABOUTME: Validated once at registration so typos fail startup instead of requests

package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/modeladmin/internal/apierr"
)

// DefaultPrimaryKey is used when a descriptor does not name its key field.
const DefaultPrimaryKey = "id"

// ActionHandler runs a bulk action over the selected ids.
type ActionHandler func(ctx context.Context, d *Descriptor, ids []ID) error

// Action is a named bulk operation offered on the list view.
type Action struct {
	Name        string
	Description string
	Handler     ActionHandler
	// Destructive actions on the user model may not target the caller.
	Destructive bool
}

// Fieldset groups fields on the add and change forms.
type Fieldset struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Fields      []string `json:"fields"`
	Classes     []string `json:"classes,omitempty"`
}

// Inline attaches a child model edited alongside its parent.
// FKField is the child field that stores the parent's primary key.
type Inline struct {
	Descriptor *Descriptor
	FKField    string
	// Extra is the number of blank child forms the front-end shows.
	Extra int
	// Max caps the number of children; 0 means unlimited.
	Max int
}

// Descriptor is the admin configuration bound to one model name.
type Descriptor struct {
	Name  string
	Label string
	// PrimaryKey defaults to "id".
	PrimaryKey string
	Fields     []Field

	ListDisplay      []string
	ListDisplayLinks []string
	ListFilter       []string
	SearchFields     []string
	SearchHelpText   string
	// Ordering is the default sort, each entry "field" or "-field".
	Ordering       []string
	ReadonlyFields []string
	// Exclude removes fields from the add and change forms.
	Exclude   []string
	Fieldsets []Fieldset
	// FormfieldOverrides replaces the widget for every field of a type.
	FormfieldOverrides map[FieldType]Widget

	Actions         []Action
	ActionsOnTop    bool
	ActionsOnBottom bool
	Inlines         []Inline

	ListPerPage    int
	SaveAs         bool
	SaveAsContinue bool
	SaveOnTop      bool

	// Permission is consulted after session and role checks. Nil allows everything.
	Permission Permission
	Adapter    Adapter

	// User is set on the descriptor that backs sign-in.
	User *UserModel
}

// PK returns the primary key field name.
func (d *Descriptor) PK() string {
	if d.PrimaryKey == "" {
		return DefaultPrimaryKey
	}
	return d.PrimaryKey
}

// DisplayLabel falls back to the model name.
func (d *Descriptor) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns every declared field name in declaration order.
func (d *Descriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Action looks up an action by name.
func (d *Descriptor) Action(name string) (Action, bool) {
	for _, a := range d.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// WidgetFor resolves the widget of f: explicit widget, then type override, then type default.
func (d *Descriptor) WidgetFor(f Field) Widget {
	if f.Widget != "" {
		return f.Widget
	}
	if w, ok := d.FormfieldOverrides[f.Type]; ok {
		return w
	}
	return f.Type.DefaultWidget()
}

// IsReadOnly reports whether f may not be written through add or change.
func (d *Descriptor) IsReadOnly(f Field) bool {
	if f.ReadOnly {
		return true
	}
	return contains(d.ReadonlyFields, f.Name)
}

// IsExcluded reports whether f is left off the add and change forms.
func (d *Descriptor) IsExcluded(f Field) bool {
	return contains(d.Exclude, f.Name)
}

// Serializable reports whether f may appear in responses.
func (d *Descriptor) Serializable(f Field) bool {
	if f.Hidden || d.WidgetFor(f) == WidgetPassword {
		return false
	}
	if d.User != nil && f.Name == d.User.WithDefaults().PasswordField {
		return false
	}
	return true
}

// DisplayFields returns the list columns: ListDisplay, or every serializable field.
func (d *Descriptor) DisplayFields() []string {
	if len(d.ListDisplay) > 0 {
		return d.ListDisplay
	}
	var names []string
	for _, f := range d.Fields {
		if d.Serializable(f) {
			names = append(names, f.Name)
		}
	}
	return names
}

// DefaultSort returns the parsed Ordering.
func (d *Descriptor) DefaultSort() []SortField {
	sort := make([]SortField, 0, len(d.Ordering))
	for _, o := range d.Ordering {
		sort = append(sort, ParseSort(o))
	}
	return sort
}

// Validate checks the descriptor in isolation and returns the first problem
// as a configuration error. Inline relationships are checked by the registry.
func (d *Descriptor) Validate() error {
	if d == nil {
		return apierr.Configuration("descriptor is nil")
	}
	if d.Name == "" {
		return apierr.Configuration("descriptor name is required")
	}
	if strings.ContainsAny(d.Name, "/ ?#") {
		return apierr.Configurationf("model %q: name must be a single path segment", d.Name)
	}
	if d.Adapter == nil {
		return apierr.Configurationf("model %q: adapter is required", d.Name)
	}
	if len(d.Fields) == 0 {
		return apierr.Configurationf("model %q: at least one field is required", d.Name)
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return apierr.Configurationf("model %q: field name is required", d.Name)
		}
		if seen[f.Name] {
			return apierr.Configurationf("model %q: field %q declared twice", d.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Type == "" {
			return apierr.Configurationf("model %q: field %q has no type", d.Name, f.Name)
		}
		if !f.Type.valid() {
			return apierr.Configurationf("model %q: field %q has unknown type %q", d.Name, f.Name, f.Type)
		}
	}
	if !seen[d.PK()] {
		return apierr.Configurationf("model %q: primary key %q is not a declared field", d.Name, d.PK())
	}

	lists := []struct {
		attr  string
		names []string
	}{
		{"list_display", d.ListDisplay},
		{"list_display_links", d.ListDisplayLinks},
		{"list_filter", d.ListFilter},
		{"search_fields", d.SearchFields},
		{"readonly_fields", d.ReadonlyFields},
		{"exclude", d.Exclude},
	}
	for _, l := range lists {
		for _, name := range l.names {
			if !seen[name] {
				return apierr.Configurationf("model %q: %s references unknown field %q", d.Name, l.attr, name)
			}
		}
	}
	for _, o := range d.Ordering {
		if name := ParseSort(o).Field; !seen[name] {
			return apierr.Configurationf("model %q: ordering references unknown field %q", d.Name, name)
		}
	}
	for _, fs := range d.Fieldsets {
		for _, name := range fs.Fields {
			if !seen[name] {
				return apierr.Configurationf("model %q: fieldset %q references unknown field %q", d.Name, fs.Name, name)
			}
		}
	}
	for t := range d.FormfieldOverrides {
		if !t.valid() {
			return apierr.Configurationf("model %q: formfield override for unknown type %q", d.Name, t)
		}
	}

	actions := make(map[string]bool, len(d.Actions))
	for _, a := range d.Actions {
		if a.Name == "" {
			return apierr.Configurationf("model %q: action name is required", d.Name)
		}
		if actions[a.Name] {
			return apierr.Configurationf("model %q: action %q declared twice", d.Name, a.Name)
		}
		if a.Handler == nil {
			return apierr.Configurationf("model %q: action %q has no handler", d.Name, a.Name)
		}
		actions[a.Name] = true
	}

	if d.ListPerPage < 0 {
		return apierr.Configurationf("model %q: list_per_page must not be negative", d.Name)
	}

	for _, in := range d.Inlines {
		if in.Descriptor == nil {
			return apierr.Configurationf("model %q: inline without descriptor", d.Name)
		}
		if in.FKField == "" {
			return apierr.Configurationf("model %q: inline %q has no foreign key field", d.Name, in.Descriptor.Name)
		}
	}

	if d.User != nil {
		um := d.User.WithDefaults()
		for _, name := range []string{um.UsernameField, um.PasswordField, um.SuperuserField, um.ActiveField, um.RolesField} {
			if name != "" && !seen[name] {
				return apierr.Configurationf("model %q: user model references unknown field %q", d.Name, name)
			}
		}
	}

	return nil
}

// DeleteSelected is a ready-made bulk action that deletes every selected row.
func DeleteSelected() Action {
	return Action{
		Name:        "delete_selected",
		Description: "Delete selected objects",
		Destructive: true,
		Handler: func(ctx context.Context, d *Descriptor, ids []ID) error {
			for _, id := range ids {
				if _, err := d.Adapter.Delete(ctx, id); err != nil {
					return fmt.Errorf("deleting %s %s: %w", d.Name, id, err)
				}
			}
			return nil
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
