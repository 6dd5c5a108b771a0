// ABOUTME: Tests for the demo site: migrations, descriptors and every local backend
// ABOUTME: Runs the same sign-in, action and inline flow over database/sql, gorm and memory adapters

package demo

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/modeladmin/internal/adapter/gormadapter"
	"github.com/2389/modeladmin/internal/adapter/sqladapter"
	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/api"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/auth"
	"github.com/2389/modeladmin/internal/registry"
	"github.com/2389/modeladmin/internal/store"
)

var testHasher = auth.MultiHasher{Primary: auth.BcryptHasher{Cost: bcrypt.MinCost}}

func migratedDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.db")
	db, err := store.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, err := Migrate(context.Background(), db, sqladapter.SQLite, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, version)
	return db, path
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, _ := migratedDB(t)
	ctx := context.Background()

	version, err := Migrate(ctx, db, sqladapter.SQLite, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)

	status, err := MigrationStatus(ctx, db, sqladapter.SQLite)
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, s := range status {
		assert.Equal(t, goose.StateApplied, s.State, s.Source.Path)
	}
}

func TestDescriptorsValidate(t *testing.T) {
	a := MemoryAdapters()
	messages := UserMessageDescriptor(a.Messages)
	require.NoError(t, messages.Validate())
	require.NoError(t, UserDescriptor(a.Users, messages, Options{}).Validate())
	require.NoError(t, UserDescriptor(a.Users, messages, Options{UsernameField: "phone"}).Validate())
	require.NoError(t, EventDescriptor(a.Events, Options{}).Validate())
}

func TestCreateSuperuser(t *testing.T) {
	ctx := context.Background()
	a := MemoryAdapters()

	id, err := CreateSuperuser(ctx, a.Users, testHasher, " root ", "s3cret")
	require.NoError(t, err)

	row, err := a.Users.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "root", row["username"])
	assert.Equal(t, true, row["is_superuser"])
	ok, err := testHasher.Verify(row["hash_password"].(string), "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = CreateSuperuser(ctx, a.Users, testHasher, "root", "other")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = CreateSuperuser(ctx, a.Users, testHasher, "", "x")
	assert.Error(t, err)
	_, err = CreateSuperuser(ctx, a.Users, testHasher, "someone", "")
	assert.Error(t, err)
}

func backends(t *testing.T) map[string]func(t *testing.T) Adapters {
	return map[string]func(t *testing.T) Adapters{
		"sql": func(t *testing.T) Adapters {
			db, _ := migratedDB(t)
			a, err := SQLAdapters(db, sqladapter.SQLite)
			require.NoError(t, err)
			return a
		},
		"gorm": func(t *testing.T) Adapters {
			_, path := migratedDB(t)
			gdb, err := gormadapter.Open(path)
			require.NoError(t, err)
			t.Cleanup(func() {
				if sqlDB, err := gdb.DB(); err == nil {
					sqlDB.Close()
				}
			})
			a, err := GormAdapters(gdb)
			require.NoError(t, err)
			return a
		},
		"memory": func(t *testing.T) Adapters {
			return MemoryAdapters()
		},
	}
}

func TestDemoSiteOnEveryBackend(t *testing.T) {
	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			adapters := build(t)

			reg := registry.New(nil)
			require.NoError(t, Register(reg, adapters, Options{Hasher: testHasher}))
			assert.True(t, reg.IsRegistered(ModelUserMessage))

			sessions := store.NewMemoryStore(0, 0)
			t.Cleanup(func() { sessions.Close() })
			authSvc := auth.NewService(reg, sessions, auth.Config{UserModel: ModelUser, Hasher: testHasher}, nil)
			svc := api.New(reg, authSvc, api.Config{}, nil)

			rootID, err := CreateSuperuser(ctx, adapters.Users, testHasher, "root", "s3cret")
			require.NoError(t, err)

			sid, err := svc.SignIn(ctx, "", api.SignInRequest{Username: "root", Password: "s3cret"})
			require.NoError(t, err)

			me, err := svc.Me(ctx, sid)
			require.NoError(t, err)
			assert.Equal(t, "root", me["username"])
			assert.NotContains(t, me, "hash_password")

			staff, err := svc.Add(ctx, sid, ModelUser, map[string]any{
				"username":      "staff",
				"hash_password": "pw",
				"is_active":     true,
			})
			require.NoError(t, err)
			staffID, err := admin.IDFromValue(staff["id"])
			require.NoError(t, err)

			raw, err := json.Marshal(staffID)
			require.NoError(t, err)
			require.NoError(t, svc.Action(ctx, sid, ModelUser, "deactivate", api.ActionRequest{IDs: []json.RawMessage{raw}}))

			got, err := svc.Get(ctx, sid, ModelUser, staffID.String())
			require.NoError(t, err)
			assert.Equal(t, false, got["is_active"])

			root, err := svc.Get(ctx, sid, ModelUser, rootID.String())
			require.NoError(t, err)
			assert.Equal(t, true, root["is_active"], "action must only touch selected rows")

			rootRaw, err := json.Marshal(rootID)
			require.NoError(t, err)
			err = svc.Action(ctx, sid, ModelUser, "deactivate", api.ActionRequest{IDs: []json.RawMessage{rootRaw}})
			assert.Equal(t, apierr.KindForbidden, apierr.KindOf(err), "deactivating yourself must be refused")
			require.NoError(t, svc.Action(ctx, sid, ModelUser, "activate", api.ActionRequest{IDs: []json.RawMessage{rootRaw}}))

			msg, err := svc.Add(ctx, sid, ModelUserMessage, map[string]any{
				"user_id": json.Number(staffID.String()),
				"message": "welcome aboard",
			})
			require.NoError(t, err)
			assert.Equal(t, "welcome aboard", msg["message"])

			event, err := svc.Add(ctx, sid, ModelEvent, map[string]any{
				"name":        "Launch",
				"kind":        "meetup",
				"description": `<p>Hello</p><script>alert(1)</script>`,
				"capacity":    json.Number("40"),
				"is_public":   true,
			})
			require.NoError(t, err)
			eventID, err := admin.IDFromValue(event["id"])
			require.NoError(t, err)
			assert.True(t, eventID.IsUUID())
			assert.Equal(t, "<p>Hello</p>", event["description"])

			_, err = svc.Add(ctx, sid, ModelEvent, map[string]any{"name": "Bad", "kind": "party"})
			require.Error(t, err)

			cfg, err := svc.Configuration(ctx, sid)
			require.NoError(t, err)
			var user *api.ModelConfiguration
			for i := range cfg.Models {
				if cfg.Models[i].Name == ModelUser {
					user = &cfg.Models[i]
				}
			}
			require.NotNil(t, user)
			require.Len(t, user.Inlines, 1)
			assert.Equal(t, "user_id", user.Inlines[0].FKName)
			assert.Len(t, user.Actions, 3)
		})
	}
}
