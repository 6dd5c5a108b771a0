// ABOUTME: Admin descriptors for the demo models: user with inline messages, and UUID-keyed events
// ABOUTME: The user model backs sign-in and carries activate/deactivate bulk actions

package demo

import (
	"context"
	"fmt"

	"github.com/2389/modeladmin/internal/admin"
)

// Model and table names.
const (
	ModelUser        = "user"
	ModelUserMessage = "user_message"
	ModelEvent       = "event"

	TableUser        = "user"
	TableUserMessage = "user_message"
	TableEvent       = "event"
)

// Column sets shared by the SQL adapters.
var (
	userColumns    = []string{"id", "username", "phone", "hash_password", "is_superuser", "is_active", "roles", "created_at"}
	messageColumns = []string{"id", "user_id", "message"}
	eventColumns   = []string{"id", "name", "description", "kind", "starts_on", "capacity", "price", "is_public", "owner_id"}
)

// Options tune the demo descriptors.
type Options struct {
	// UsernameField is the sign-in lookup column: "username" or "phone".
	UsernameField string
	// Hasher hashes new passwords. Nil uses the auth default.
	Hasher admin.Hasher
	// Permission applies to the user and event models. Messages inherit it.
	Permission admin.Permission
}

// UserMessageDescriptor describes messages edited inline on a user.
func UserMessageDescriptor(adapter admin.Adapter) *admin.Descriptor {
	return &admin.Descriptor{
		Name:  ModelUserMessage,
		Label: "User messages",
		Fields: []admin.Field{
			{Name: "id", Type: admin.TypeInt, ReadOnly: true},
			{Name: "user_id", Label: "User", Type: admin.TypeInt, Required: true, ForeignKey: ModelUser, Widget: admin.WidgetAsyncSelect},
			{Name: "message", Type: admin.TypeText, Required: true},
		},
		ListDisplay:      []string{"user_id", "message"},
		ListDisplayLinks: []string{"user_id", "message"},
		ListFilter:       []string{"user_id", "message"},
		SearchFields:     []string{"message"},
		Adapter:          adapter,
	}
}

// UserDescriptor describes the sign-in model with its inline messages.
func UserDescriptor(adapter admin.Adapter, messages *admin.Descriptor, opts Options) *admin.Descriptor {
	usernameField := opts.UsernameField
	if usernameField == "" {
		usernameField = "username"
	}
	return &admin.Descriptor{
		Name:  ModelUser,
		Label: "Users",
		Fields: []admin.Field{
			{Name: "id", Type: admin.TypeInt, ReadOnly: true},
			{Name: "username", Type: admin.TypeString, Required: true, Widget: admin.WidgetSlug, WidgetProps: map[string]any{"required": true}},
			{Name: "phone", Type: admin.TypeString, Widget: admin.WidgetPhone},
			{Name: "hash_password", Label: "Password", Type: admin.TypeString, Required: true, Widget: admin.WidgetPassword, WidgetProps: map[string]any{"passwordModalForm": true}},
			{Name: "is_superuser", Label: "Superuser", Type: admin.TypeBool},
			{Name: "is_active", Label: "Active", Type: admin.TypeBool},
			{Name: "roles", Type: admin.TypeString},
			{Name: "created_at", Type: admin.TypeDateTime, ReadOnly: true},
		},
		ListDisplay:      []string{"id", "username", "is_superuser", "is_active"},
		ListDisplayLinks: []string{"username"},
		ListFilter:       []string{"username", "is_superuser", "is_active"},
		SearchFields:     []string{"id", "username"},
		Ordering:         []string{"id"},
		Fieldsets: []admin.Fieldset{
			{Fields: []string{"username", "phone", "hash_password"}},
			{Name: "Permissions", Fields: []string{"is_active", "is_superuser", "roles"}},
		},
		Actions: []admin.Action{
			admin.DeleteSelected(),
			setActive("activate", "Set as active", true),
			setActive("deactivate", "Deactivate", false),
		},
		ActionsOnTop: true,
		Inlines: []admin.Inline{
			{Descriptor: messages, FKField: "user_id", Extra: 1},
		},
		Permission: opts.Permission,
		Adapter:    adapter,
		User: &admin.UserModel{
			UsernameField:  usernameField,
			PasswordField:  "hash_password",
			SuperuserField: "is_superuser",
			ActiveField:    "is_active",
			RolesField:     "roles",
			Hasher:         opts.Hasher,
		},
	}
}

// EventDescriptor describes events keyed by UUID.
func EventDescriptor(adapter admin.Adapter, opts Options) *admin.Descriptor {
	return &admin.Descriptor{
		Name:  ModelEvent,
		Label: "Events",
		Fields: []admin.Field{
			{Name: "id", Type: admin.TypeUUID, ReadOnly: true},
			{Name: "name", Type: admin.TypeString, Required: true},
			{Name: "description", Type: admin.TypeText, Widget: admin.WidgetRichText},
			{Name: "kind", Type: admin.TypeString, Choices: []admin.Choice{
				{Value: "meetup", Label: "Meetup"},
				{Value: "conference", Label: "Conference"},
				{Value: "workshop", Label: "Workshop"},
			}},
			{Name: "starts_on", Type: admin.TypeDate},
			{Name: "capacity", Type: admin.TypeInt},
			{Name: "price", Type: admin.TypeFloat},
			{Name: "is_public", Label: "Public", Type: admin.TypeBool},
			{Name: "owner_id", Label: "Owner", Type: admin.TypeInt, ForeignKey: ModelUser, Widget: admin.WidgetAsyncSelect},
		},
		ListDisplay:    []string{"name", "kind", "starts_on", "capacity", "is_public"},
		ListFilter:     []string{"kind", "is_public", "owner_id"},
		SearchFields:   []string{"name", "description"},
		SearchHelpText: "Search by name or description",
		Ordering:       []string{"-starts_on", "name"},
		Actions:        []admin.Action{admin.DeleteSelected()},
		ListPerPage:    20,
		SaveAs:         true,
		SaveOnTop:      true,
		Permission:     opts.Permission,
		Adapter:        adapter,
	}
}

// setActive builds an action that sets is_active on every selected user.
func setActive(name, description string, active bool) admin.Action {
	return admin.Action{
		Name:        name,
		Description: description,
		Destructive: !active,
		Handler: func(ctx context.Context, d *admin.Descriptor, ids []admin.ID) error {
			for _, id := range ids {
				if _, err := d.Adapter.Change(ctx, id, admin.Row{"is_active": active}); err != nil {
					return fmt.Errorf("updating %s %s: %w", d.Name, id, err)
				}
			}
			return nil
		},
	}
}
