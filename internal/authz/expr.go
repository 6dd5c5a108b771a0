// ABOUTME: CEL expression permission evaluated per request against user, operation and target
// ABOUTME: The expression is compiled once and must produce a bool

package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/2389/modeladmin/internal/admin"
)

// ExprPermission allows a request when its CEL expression evaluates to true.
//
// Variables: user (map with id, username, is_superuser, roles), op, model,
// id (empty when there is no target row) and action.
//
//	op in ["list", "view"] || "editor" in user.roles
type ExprPermission struct {
	expr    string
	program cel.Program
}

var _ admin.Permission = (*ExprPermission)(nil)

func newExprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("op", cel.StringType),
		cel.Variable("model", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("action", cel.StringType),
	)
}

// NewExprPermission compiles expr.
func NewExprPermission(expr string) (*ExprPermission, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("permission expression required")
	}
	env, err := newExprEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling permission expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New("permission expression must evaluate to a bool")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building permission program: %w", err)
	}
	return &ExprPermission{expr: expr, program: program}, nil
}

// String returns the source expression.
func (p *ExprPermission) String() string { return p.expr }

// Allow implements admin.Permission.
func (p *ExprPermission) Allow(ctx context.Context, user *admin.User, op admin.Operation, target admin.Target) (bool, error) {
	vars := map[string]any{
		"user":   userVars(user),
		"op":     string(op),
		"model":  target.Model,
		"id":     "",
		"action": target.Action,
	}
	if target.ID != nil {
		vars["id"] = target.ID.String()
	}
	out, _, err := p.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("evaluating permission expression: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("permission expression did not produce a bool")
	}
	return allowed, nil
}

func userVars(user *admin.User) map[string]any {
	if user == nil {
		return map[string]any{"id": "", "username": "", "is_superuser": false, "roles": []string{}}
	}
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"id":           user.ID.String(),
		"username":     user.Username,
		"is_superuser": user.IsSuperuser,
		"roles":        roles,
	}
}

// All allows a request only when every permission allows it.
type All []admin.Permission

// Allow implements admin.Permission.
func (all All) Allow(ctx context.Context, user *admin.User, op admin.Operation, target admin.Target) (bool, error) {
	for _, p := range all {
		if p == nil {
			continue
		}
		ok, err := p.Allow(ctx, user, op, target)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
