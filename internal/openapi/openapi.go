// ABOUTME: Builds an OpenAPI 3 document describing the admin endpoints of every registered model
// ABOUTME: Object and input schemas are derived from descriptor fields using kin-openapi

package openapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/registry"
)

// Version is the OpenAPI version written into generated documents.
const Version = "3.0.3"

// SessionScheme names the cookie security scheme.
const SessionScheme = "sessionCookie"

// Info names the generated document.
type Info struct {
	Title      string
	Version    string
	CookieName string
}

// Build describes every model currently in reg. Models registered later are
// not included; rebuild after registration changes.
func Build(reg *registry.Registry, info Info) *openapi3.T {
	if info.Title == "" {
		info.Title = "Admin API"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	if info.CookieName == "" {
		info.CookieName = "sessionid"
	}

	doc := &openapi3.T{
		OpenAPI: Version,
		Info:    &openapi3.Info{Title: info.Title, Version: info.Version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Error": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
					WithProperty("detail", openapi3.NewStringSchema()).
					WithRequired([]string{"detail"})),
				"SignIn": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
					WithProperty("username", openapi3.NewStringSchema()).
					WithProperty("password", openapi3.NewStringSchema()).
					WithRequired([]string{"username", "password"})),
				"ChangePassword": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
					WithProperty("password", openapi3.NewStringSchema()).
					WithRequired([]string{"password"})),
				"ActionRequest": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
					WithProperty("ids", openapi3.NewArraySchema().WithItems(idSchema()))),
				"ExportRequest": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
					WithProperty("fields", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
					WithProperty("format", openapi3.NewStringSchema())),
				"Empty": openapi3.NewSchemaRef("", openapi3.NewObjectSchema()),
				"Object": openapi3.NewSchemaRef("", openapi3.NewObjectSchema()),
			},
			SecuritySchemes: openapi3.SecuritySchemes{
				SessionScheme: &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{
					Type: "apiKey",
					In:   "cookie",
					Name: info.CookieName,
				}},
			},
		},
	}

	addSessionPaths(doc)
	for _, d := range reg.Descriptors() {
		addTree(doc, d)
	}
	return doc
}

// Validate checks the document against the OpenAPI 3 rules.
func Validate(ctx context.Context, doc *openapi3.T) error {
	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("invalid openapi document: %w", err)
	}
	return nil
}

// ref points at a component schema. The resolved value is kept alongside the
// pointer so the document validates without a loader round trip.
func ref(doc *openapi3.T, name string) *openapi3.SchemaRef {
	var value *openapi3.Schema
	if s, ok := doc.Components.Schemas[name]; ok {
		value = s.Value
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, value)
}

func idSchema() *openapi3.Schema {
	return &openapi3.Schema{OneOf: openapi3.SchemaRefs{
		openapi3.NewSchemaRef("", openapi3.NewInt64Schema()),
		openapi3.NewSchemaRef("", openapi3.NewUUIDSchema()),
	}}
}

func jsonResponse(description string, schema *openapi3.SchemaRef) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().
		WithDescription(description).
		WithJSONSchemaRef(schema)}
}

// operation builds an operation with the success response and the given error statuses.
func operation(doc *openapi3.T, id, summary string, ok *openapi3.ResponseRef, secured bool, errors ...int) *openapi3.Operation {
	opts := []openapi3.NewResponsesOption{openapi3.WithStatus(http.StatusOK, ok)}
	for _, status := range errors {
		opts = append(opts, openapi3.WithStatus(status, jsonResponse(http.StatusText(status), ref(doc, "Error"))))
	}
	op := &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		Responses:   openapi3.NewResponses(opts...),
	}
	if secured {
		op.Security = &openapi3.SecurityRequirements{openapi3.NewSecurityRequirement().Authenticate(SessionScheme)}
	}
	return op
}

func jsonBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(schema)}
}

func pathParam(name string, schema *openapi3.Schema) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewPathParameter(name).WithSchema(schema)}
}

func queryParam(name, description string, schema *openapi3.Schema) *openapi3.ParameterRef {
	p := openapi3.NewQueryParameter(name).WithSchema(schema)
	p.Description = description
	return &openapi3.ParameterRef{Value: p}
}

func addSessionPaths(doc *openapi3.T) {
	signIn := operation(doc, "signIn", "Sign in and receive a session cookie", jsonResponse("Signed in", ref(doc, "Empty")), false,
		http.StatusUnauthorized, http.StatusUnprocessableEntity)
	signIn.RequestBody = jsonBody(ref(doc, "SignIn"))
	doc.Paths.Set("/api/sign-in", &openapi3.PathItem{Post: signIn})

	doc.Paths.Set("/api/sign-out", &openapi3.PathItem{
		Post: operation(doc, "signOut", "End the current session", jsonResponse("Signed out", ref(doc, "Empty")), true, http.StatusUnauthorized),
	})
	doc.Paths.Set("/api/me", &openapi3.PathItem{
		Get: operation(doc, "me", "The signed-in user", jsonResponse("Current user", ref(doc, "Object")), true, http.StatusUnauthorized),
	})
	doc.Paths.Set("/api/configuration", &openapi3.PathItem{
		Get: operation(doc, "configuration", "Site and model configuration", jsonResponse("Configuration", ref(doc, "Object")), true, http.StatusUnauthorized),
	})

	changePassword := operation(doc, "changePassword", "Set a user's password", jsonResponse("Password changed", ref(doc, "Empty")), true,
		http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity)
	changePassword.Parameters = openapi3.Parameters{pathParam("id", idSchema())}
	changePassword.RequestBody = jsonBody(ref(doc, "ChangePassword"))
	doc.Paths.Set("/api/change-password/{id}", &openapi3.PathItem{Patch: changePassword})
}

// FieldSchema maps a field to its JSON schema.
func FieldSchema(d *admin.Descriptor, f admin.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Type {
	case admin.TypeInt:
		s = openapi3.NewInt64Schema()
	case admin.TypeFloat:
		s = openapi3.NewFloat64Schema()
	case admin.TypeBool:
		s = openapi3.NewBoolSchema()
	case admin.TypeDate:
		s = openapi3.NewDateTimeSchema()
		s.Format = "date"
	case admin.TypeDateTime:
		s = openapi3.NewDateTimeSchema()
	case admin.TypeUUID:
		s = openapi3.NewUUIDSchema()
	case admin.TypeJSON:
		s = &openapi3.Schema{}
	default:
		s = openapi3.NewStringSchema()
	}
	if len(f.Choices) > 0 {
		values := make([]any, len(f.Choices))
		for i, c := range f.Choices {
			values[i] = c.Value
		}
		s.Enum = values
	}
	s.Title = f.DisplayLabel()
	s.ReadOnly = d.IsReadOnly(f)
	if d.WidgetFor(f) == admin.WidgetPassword {
		s.Format = "password"
	}
	return s
}

func objectSchemas(d *admin.Descriptor) (object, input *openapi3.Schema) {
	object = openapi3.NewObjectSchema()
	input = openapi3.NewObjectSchema()
	var required []string
	for _, f := range d.Fields {
		s := FieldSchema(d, f)
		if d.Serializable(f) {
			object.WithProperty(f.Name, s)
		}
		password := d.WidgetFor(f) == admin.WidgetPassword ||
			(d.User != nil && f.Name == d.User.WithDefaults().PasswordField)
		if d.IsReadOnly(f) || (!d.Serializable(f) && !password) {
			continue
		}
		in := *s
		in.ReadOnly = false
		if password {
			in.WriteOnly = true
		}
		input.WithProperty(f.Name, &in)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	if len(required) > 0 {
		input.Required = required
	}
	return object, input
}

// addTree adds d and every inline below it. Inline models have their own endpoints.
func addTree(doc *openapi3.T, d *admin.Descriptor) {
	addModel(doc, d)
	for _, in := range d.Inlines {
		addTree(doc, in.Descriptor)
	}
}

func addModel(doc *openapi3.T, d *admin.Descriptor) {
	name := schemaName(d.Name)
	object, input := objectSchemas(d)
	doc.Components.Schemas[name] = openapi3.NewSchemaRef("", object)
	doc.Components.Schemas[name+"Input"] = openapi3.NewSchemaRef("", input)
	doc.Components.Schemas[name+"List"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("total", openapi3.NewInt64Schema()).
		WithPropertyRef("results", &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{openapi3.TypeArray},
			Items: ref(doc, name),
		}}))

	var pkSchema *openapi3.Schema
	if f, ok := d.Field(d.PK()); ok {
		pkSchema = FieldSchema(d, f)
		pkSchema.ReadOnly = false
		pkSchema.Title = ""
	} else {
		pkSchema = idSchema()
	}
	model := d.Name
	errs := []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity}

	list := operation(doc, "list_"+model, "List "+d.DisplayLabel(), jsonResponse("A page of objects", ref(doc, name+"List")), true, errs...)
	list.Parameters = append(listParams(d),
		queryParam("offset", "Rows to skip", openapi3.NewIntegerSchema().WithMin(0)),
		queryParam("limit", "Page size", openapi3.NewIntegerSchema().WithMin(1)),
	)
	doc.Paths.Set("/api/list/"+model, &openapi3.PathItem{Get: list})

	get := operation(doc, "get_"+model, "Get one "+d.DisplayLabel(), jsonResponse("The object", ref(doc, name)), true, errs...)
	get.Parameters = openapi3.Parameters{pathParam("id", pkSchema)}
	doc.Paths.Set("/api/get/"+model+"/{id}", &openapi3.PathItem{Get: get})

	add := operation(doc, "add_"+model, "Add "+d.DisplayLabel(), jsonResponse("The stored object", ref(doc, name)), true, errs...)
	add.RequestBody = jsonBody(ref(doc, name+"Input"))
	doc.Paths.Set("/api/add/"+model, &openapi3.PathItem{Post: add})

	change := operation(doc, "change_"+model, "Change "+d.DisplayLabel(), jsonResponse("The updated object", ref(doc, name)), true, errs...)
	change.Parameters = openapi3.Parameters{pathParam("id", pkSchema)}
	change.RequestBody = jsonBody(ref(doc, name+"Input"))
	doc.Paths.Set("/api/change/"+model+"/{id}", &openapi3.PathItem{Patch: change})

	del := operation(doc, "delete_"+model, "Delete "+d.DisplayLabel(), jsonResponse("The deleted id", &openapi3.SchemaRef{Value: pkSchema}), true, errs...)
	del.Parameters = openapi3.Parameters{pathParam("id", pkSchema)}
	doc.Paths.Set("/api/delete/"+model+"/{id}", &openapi3.PathItem{Delete: del})

	if len(d.Actions) > 0 {
		names := make([]any, len(d.Actions))
		for i, a := range d.Actions {
			names[i] = a.Name
		}
		action := operation(doc, "action_"+model, "Run a bulk action on "+d.DisplayLabel(), jsonResponse("Action ran", ref(doc, "Empty")), true, errs...)
		action.Parameters = openapi3.Parameters{pathParam("action", openapi3.NewStringSchema().WithEnum(names...))}
		action.RequestBody = jsonBody(ref(doc, "ActionRequest"))
		doc.Paths.Set("/api/action/"+model+"/{action}", &openapi3.PathItem{Post: action})
	}

	export := operation(doc, "export_"+model, "Export "+d.DisplayLabel(),
		&openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("The exported file").
			WithContent(openapi3.Content{
				"text/csv":         openapi3.NewMediaType().WithSchema(openapi3.NewStringSchema()),
				"application/json": openapi3.NewMediaType().WithSchema(openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema())),
			})}, true, errs...)
	export.Parameters = listParams(d)
	export.RequestBody = jsonBody(ref(doc, "ExportRequest"))
	doc.Paths.Set("/api/export/"+model, &openapi3.PathItem{Post: export})
}

// listParams describes search, sort and the exact-match filters of every
// listed filter field.
func listParams(d *admin.Descriptor) openapi3.Parameters {
	params := openapi3.Parameters{
		queryParam("search", "Case-insensitive match on "+strings.Join(d.SearchFields, ", "), openapi3.NewStringSchema()),
		queryParam("sort_by", "Comma-separated fields, prefix - for descending", openapi3.NewStringSchema()),
	}
	for _, name := range d.ListFilter {
		f, ok := d.Field(name)
		if !ok || !d.Serializable(f) {
			continue
		}
		s := FieldSchema(d, f)
		s.ReadOnly = false
		s.Title = ""
		params = append(params, queryParam(name, "Filter by "+f.DisplayLabel(), s))
	}
	return params
}

// schemaName turns a model name like "user_message" into "UserMessage".
func schemaName(model string) string {
	out := make([]byte, 0, len(model))
	upper := true
	for i := 0; i < len(model); i++ {
		c := model[i]
		if c == '_' || c == '-' || c == ' ' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
