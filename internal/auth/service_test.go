// ABOUTME: Tests for sign-in, sign-out and session resolution against an in-memory user model
// ABOUTME: Covers bad credentials, inactive and non-superuser accounts, and unregistered user models

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/modeladmin/internal/adapter/memadapter"
	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/registry"
	"github.com/2389/modeladmin/internal/store"
)

type authFixture struct {
	svc      *Service
	reg      *registry.Registry
	sessions *store.MemoryStore
	users    *memadapter.Adapter
	hasher   admin.Hasher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	hasher := MultiHasher{Primary: BcryptHasher{Cost: bcrypt.MinCost}}
	users := memadapter.New("id")
	d := &admin.Descriptor{
		Name: "user",
		Fields: []admin.Field{
			{Name: "id", Type: admin.TypeInt},
			{Name: "username", Type: admin.TypeString},
			{Name: "hash_password", Type: admin.TypeString},
			{Name: "is_superuser", Type: admin.TypeBool},
			{Name: "is_active", Type: admin.TypeBool},
		},
		Adapter: users,
		User: &admin.UserModel{
			PasswordField:  "hash_password",
			SuperuserField: "is_superuser",
			ActiveField:    "is_active",
			Hasher:         hasher,
		},
	}
	reg := registry.New(nil)
	require.NoError(t, reg.Register(d))

	sessions := store.NewMemoryStore(0, time.Minute)
	t.Cleanup(func() { sessions.Close() })

	svc := NewService(reg, sessions, Config{UserModel: "user", SessionTTL: time.Hour}, nil)
	return &authFixture{svc: svc, reg: reg, sessions: sessions, users: users, hasher: hasher}
}

func (f *authFixture) addUser(t *testing.T, username, password string, superuser, active bool) admin.ID {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	row, err := f.users.Add(context.Background(), admin.Row{
		"username":      username,
		"hash_password": hash,
		"is_superuser":  superuser,
		"is_active":     active,
	})
	require.NoError(t, err)
	id, err := admin.IDFromValue(row["id"])
	require.NoError(t, err)
	return id
}

func TestSignInCreatesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "admin", "secret", true, true)

	sid, err := f.svc.SignIn(ctx, "", "admin", "secret")
	require.NoError(t, err)
	assert.Len(t, sid, 64)

	got, ok := f.svc.UserID(ctx, sid)
	require.True(t, ok)
	assert.Equal(t, id, got)

	user, err := f.svc.RequireUser(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, user.IsSuperuser)
}

func TestSignInReplacesExistingSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.addUser(t, "admin", "secret", true, true)

	first, err := f.svc.SignIn(ctx, "", "admin", "secret")
	require.NoError(t, err)
	second, err := f.svc.SignIn(ctx, first, "admin", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, ok := f.svc.UserID(ctx, first)
	assert.False(t, ok)
	_, ok = f.svc.UserID(ctx, second)
	assert.True(t, ok)
}

func TestSignInRejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.addUser(t, "admin", "secret", true, true)
	f.addUser(t, "staff", "secret", false, true)
	f.addUser(t, "gone", "secret", true, false)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"unknown user", "ghost", "secret"},
		{"empty credentials", "", ""},
		{"not a superuser", "staff", "secret"},
		{"inactive", "gone", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sid, err := f.svc.SignIn(ctx, "", tt.username, tt.password)
			require.Error(t, err)
			assert.Empty(t, sid)
			assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))
		})
	}
	assert.Equal(t, 0, f.sessions.Len())
}

func TestSignInWithUnregisteredUserModel(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.addUser(t, "admin", "secret", true, true)
	sid, err := f.svc.SignIn(ctx, "", "admin", "secret")
	require.NoError(t, err)

	f.reg.Unregister("user")

	_, err = f.svc.SignIn(ctx, "", "admin", "secret")
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))

	_, err = f.svc.RequireUser(ctx, sid)
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))
}

func TestSignOutIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.addUser(t, "admin", "secret", true, true)

	sid, err := f.svc.SignIn(ctx, "", "admin", "secret")
	require.NoError(t, err)

	deleted, err := f.svc.SignOut(ctx, sid)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.svc.SignOut(ctx, sid)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.svc.SignOut(ctx, "")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.svc.RequireUser(ctx, sid)
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))
}

func TestRequireUserAfterDeactivation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "admin", "secret", true, true)

	sid, err := f.svc.SignIn(ctx, "", "admin", "secret")
	require.NoError(t, err)

	_, err = f.users.Change(ctx, id, admin.Row{"is_active": false})
	require.NoError(t, err)

	_, err = f.svc.RequireUser(ctx, sid)
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))

	_, err = f.users.Delete(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.RequireUser(ctx, sid)
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))
}

func TestExpiredSessionIsRejected(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.addUser(t, "admin", "secret", true, true)

	f.svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	sid, err := f.svc.SignIn(ctx, "", "admin", "secret")
	require.NoError(t, err)

	_, ok := f.svc.UserID(ctx, sid)
	assert.False(t, ok)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "admin", "secret", true, true)

	require.NoError(t, f.svc.ChangePassword(ctx, id, "fresh"))

	_, err := f.svc.SignIn(ctx, "", "admin", "secret")
	assert.Error(t, err)
	_, err = f.svc.SignIn(ctx, "", "admin", "fresh")
	assert.NoError(t, err)

	err = f.svc.ChangePassword(ctx, admin.IntID(999), "x")
	assert.True(t, apierr.IsNotFound(err))

	err = f.svc.ChangePassword(ctx, id, "")
	assert.True(t, apierr.IsValidation(err))
}

func TestCustomAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.addUser(t, "admin", "secret", true, true)

	d, err := f.reg.Resolve("user")
	require.NoError(t, err)
	d.User.Authenticate = func(ctx context.Context, d *admin.Descriptor, username, password string) (admin.ID, bool, error) {
		return id, username == "token" && password == "letmein", nil
	}

	_, err = f.svc.SignIn(ctx, "", "token", "letmein")
	assert.NoError(t, err)
	_, err = f.svc.SignIn(ctx, "", "admin", "secret")
	assert.Error(t, err)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := generateSecureToken(32)
	require.NoError(t, err)
	b, err := generateSecureToken(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
