// ABOUTME: User-model options for the descriptor that backs admin sign-in
// ABOUTME: Column names are configurable so any model with a username and password can authenticate

package admin

import (
	"context"
	"fmt"
	"strings"
)

// Hasher hashes and verifies passwords. Implementations live in the auth package.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

// AuthenticateFunc resolves credentials to a user id. ok is false for bad credentials.
type AuthenticateFunc func(ctx context.Context, d *Descriptor, username, password string) (id ID, ok bool, err error)

// UserModel marks a descriptor as usable for sign-in and names its columns.
type UserModel struct {
	// UsernameField is the lookup column for sign-in. Defaults to "username".
	UsernameField string
	// PasswordField holds the password hash. Defaults to "password".
	PasswordField string
	// SuperuserField must be truthy for a user to access the admin.
	// Empty means every active user is treated as a superuser.
	SuperuserField string
	// ActiveField must be truthy when set. Empty skips the check.
	ActiveField string
	// RolesField holds a []string or a comma-separated string of role names.
	RolesField string

	// Hasher verifies and produces hashes. Nil uses the auth package default.
	Hasher Hasher
	// Authenticate replaces the default username/password lookup.
	Authenticate AuthenticateFunc
}

// WithDefaults fills unset column names.
func (m UserModel) WithDefaults() UserModel {
	if m.UsernameField == "" {
		m.UsernameField = "username"
	}
	if m.PasswordField == "" {
		m.PasswordField = "password"
	}
	return m
}

// UserFromRow builds the authenticated identity from a user-model row.
func (m UserModel) UserFromRow(pk string, row Row) (*User, error) {
	m = m.WithDefaults()
	id, err := IDFromValue(row[pk])
	if err != nil {
		return nil, fmt.Errorf("user row has invalid %s: %w", pk, err)
	}
	u := &User{
		ID:          id,
		Username:    fmt.Sprint(row[m.UsernameField]),
		IsSuperuser: true,
		IsActive:    true,
		Row:         row,
	}
	if m.SuperuserField != "" {
		u.IsSuperuser = Truthy(row[m.SuperuserField])
	}
	if m.ActiveField != "" {
		u.IsActive = Truthy(row[m.ActiveField])
	}
	if m.RolesField != "" {
		u.Roles = rolesFromValue(row[m.RolesField])
	}
	return u, nil
}

func rolesFromValue(v any) []string {
	var roles []string
	switch x := v.(type) {
	case []string:
		roles = append(roles, x...)
	case []any:
		for _, r := range x {
			roles = append(roles, fmt.Sprint(r))
		}
	case string:
		for _, r := range strings.Split(x, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
	}
	return roles
}

// Truthy interprets the loose boolean encodings different backends return.
func Truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "t", "true", "yes", "y", "on":
			return true
		}
	case []byte:
		return Truthy(string(x))
	}
	return false
}
