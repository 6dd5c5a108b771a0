// ABOUTME: Tests for casbin and CEL permissions
// ABOUTME: Covers role inheritance, wildcards, policy files, expression compile errors and composition

package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/modeladmin/internal/admin"
)

func TestCasbinPermission(t *testing.T) {
	p, err := NewCasbinPermission("", "")
	require.NoError(t, err)

	require.NoError(t, p.AddRule(Rule{Subject: RoleSubject("editor"), Model: "post", Operation: Wildcard}))
	require.NoError(t, p.AddRule(Rule{Subject: RoleSubject("viewer"), Model: Wildcard, Operation: string(admin.OpList)}))
	require.NoError(t, p.AddRule(Rule{Subject: UserSubject("root"), Model: Wildcard, Operation: Wildcard}))
	require.NoError(t, p.AssignRole(UserSubject("bob"), "viewer"))
	assert.Error(t, p.AddRule(Rule{Subject: "x"}))

	ctx := context.Background()
	editor := &admin.User{Username: "ann", Roles: []string{"Editor"}}
	bob := &admin.User{Username: "bob"}
	root := &admin.User{Username: "root"}

	tests := []struct {
		name  string
		user  *admin.User
		op    admin.Operation
		model string
		want  bool
	}{
		{"role grants every op on its model", editor, admin.OpDelete, "post", true},
		{"role does not reach other models", editor, admin.OpDelete, "user", false},
		{"assigned role applies to user subject", bob, admin.OpList, "user", true},
		{"viewer cannot change", bob, admin.OpChange, "user", false},
		{"user-level wildcard", root, admin.OpExport, "anything", true},
		{"nil user", nil, admin.OpList, "post", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := p.Allow(ctx, tt.user, tt.op, admin.Target{Model: tt.model})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCasbinPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"p, role:support, ticket, list\n"+
			"p, role:support, ticket, view\n"+
			"g, user:sam, role:support\n"), 0600))

	p, err := NewCasbinPermission(DefaultModel, path)
	require.NoError(t, err)

	sam := &admin.User{Username: "sam"}
	ok, err := p.Allow(context.Background(), sam, admin.OpView, admin.Target{Model: "ticket"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Allow(context.Background(), sam, admin.OpDelete, admin.Target{Model: "ticket"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCasbinBadModel(t *testing.T) {
	_, err := NewCasbinPermission("[request_definition]\nnonsense", "")
	assert.Error(t, err)
}

func TestExprPermission(t *testing.T) {
	p, err := NewExprPermission(`op in ["list", "view"] || "editor" in user.roles || (op == "action" && action == "activate")`)
	require.NoError(t, err)

	ctx := context.Background()
	plain := &admin.User{ID: admin.IntID(1), Username: "ann"}
	editor := &admin.User{ID: admin.IntID(2), Username: "bob", Roles: []string{"editor"}}
	id := admin.IntID(5)

	ok, err := p.Allow(ctx, plain, admin.OpList, admin.Target{Model: "user"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Allow(ctx, plain, admin.OpDelete, admin.Target{Model: "user", ID: &id})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Allow(ctx, editor, admin.OpDelete, admin.Target{Model: "user", ID: &id})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Allow(ctx, plain, admin.OpAction, admin.Target{Model: "user", Action: "activate"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExprPermissionSeesTargetID(t *testing.T) {
	p, err := NewExprPermission(`id != user.id`)
	require.NoError(t, err)

	me := &admin.User{ID: admin.IntID(7), Username: "me"}
	self, other := admin.IntID(7), admin.IntID(8)

	ok, err := p.Allow(context.Background(), me, admin.OpDelete, admin.Target{Model: "user", ID: &self})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Allow(context.Background(), me, admin.OpDelete, admin.Target{Model: "user", ID: &other})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExprPermissionCompileErrors(t *testing.T) {
	for _, expr := range []string{"", "op ==", `"not a bool"`, "unknown_var == 1"} {
		_, err := NewExprPermission(expr)
		assert.Error(t, err, expr)
	}
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	user := &admin.User{Username: "ann"}

	ok, err := All{admin.AllowAll{}, admin.ReadOnly{}}.Allow(ctx, user, admin.OpList, admin.Target{Model: "m"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = All{admin.AllowAll{}, admin.ReadOnly{}}.Allow(ctx, user, admin.OpDelete, admin.Target{Model: "m"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = All{nil}.Allow(ctx, user, admin.OpDelete, admin.Target{Model: "m"})
	require.NoError(t, err)
	assert.True(t, ok)
}
