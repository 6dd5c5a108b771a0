// Package admin defines the model-admin contract: descriptors, fields,
// the adapter interface that data backends implement, and the permission
// predicate consulted by the API pipeline.
//
// # Descriptors
//
// A Descriptor binds one model name to its presentation (list columns,
// filters, search fields, ordering, widgets, fieldsets), its bulk actions,
// its inline children and its Adapter:
//
//	users := &admin.Descriptor{
//		Name:         "user",
//		Fields:       []admin.Field{{Name: "id", Type: admin.TypeInt, ReadOnly: true}, ...},
//		ListDisplay:  []string{"id", "username", "is_superuser"},
//		SearchFields: []string{"username"},
//		Adapter:      memadapter.New("id"),
//		User:         &admin.UserModel{UsernameField: "username", PasswordField: "hash_password"},
//	}
//
// Descriptors are validated once, when they are registered. Every attribute
// that names a field must name a declared one.
//
// # Adapters
//
// Adapters receive normalized ListQuery values and typed ids. Rows are plain
// maps keyed by field name; Serialize and Coerce convert between adapter
// values and JSON.
//
// # Identity
//
// Record ids are integers or UUIDs. ParseID rejects anything else with a
// validation error before any adapter is called.
package admin
