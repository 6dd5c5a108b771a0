// ABOUTME: Registers the demo models and seeds superusers
// ABOUTME: Used by the serve and create-superuser commands

package demo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/registry"
)

// ErrUserExists is returned by CreateSuperuser when the username is taken.
var ErrUserExists = errors.New("user already exists")

// Register adds the user (with its inline messages) and event models to reg.
func Register(reg *registry.Registry, a Adapters, opts Options) error {
	messages := UserMessageDescriptor(a.Messages)
	if err := reg.Register(UserDescriptor(a.Users, messages, opts)); err != nil {
		return err
	}
	return reg.Register(EventDescriptor(a.Events, opts))
}

// CreateSuperuser adds an active superuser with a hashed password and returns its id.
func CreateSuperuser(ctx context.Context, users admin.Adapter, hasher admin.Hasher, username, password string) (admin.ID, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return admin.ID{}, fmt.Errorf("username is required")
	}
	if password == "" {
		return admin.ID{}, fmt.Errorf("password is required")
	}

	_, total, err := users.List(ctx, admin.ListQuery{
		Filters: []admin.Filter{{Field: "username", Op: admin.OpExact, Value: username}},
		Limit:   1,
	})
	if err != nil {
		return admin.ID{}, fmt.Errorf("looking up %q: %w", username, err)
	}
	if total > 0 {
		return admin.ID{}, fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return admin.ID{}, fmt.Errorf("hashing password: %w", err)
	}
	row, err := users.Add(ctx, admin.Row{
		"username":      username,
		"hash_password": hash,
		"is_superuser":  true,
		"is_active":     true,
		"roles":         "",
	})
	if err != nil {
		return admin.ID{}, fmt.Errorf("creating superuser: %w", err)
	}
	id, err := admin.IDFromValue(row["id"])
	if err != nil {
		return admin.ID{}, fmt.Errorf("reading new user id: %w", err)
	}
	return id, nil
}
