// ABOUTME: Casbin-backed admin.Permission with role inheritance and wildcard models/operations
// ABOUTME: Subjects are "user:<username>" and "role:<name>"; objects are model names

package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/2389/modeladmin/internal/admin"
)

// Wildcard matches any model or operation in a policy line.
const Wildcard = "*"

// DefaultModel is an RBAC model whose policies may use "*" for the object or action.
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// UserSubject is the casbin subject for a user.
func UserSubject(username string) string {
	return "user:" + strings.TrimSpace(username)
}

// RoleSubject is the casbin subject for a role.
func RoleSubject(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

// Rule grants subject the operation on a model. Either may be Wildcard.
type Rule struct {
	Subject   string `yaml:"subject" toml:"subject"`
	Model     string `yaml:"model" toml:"model"`
	Operation string `yaml:"operation" toml:"operation"`
}

// CasbinPermission implements admin.Permission with a synced casbin enforcer.
type CasbinPermission struct {
	enforcer *casbin.SyncedEnforcer
}

var _ admin.Permission = (*CasbinPermission)(nil)

// NewCasbinPermission builds an enforcer from modelText (DefaultModel when
// empty) and, when policyPath is set, loads policy lines from that CSV file.
func NewCasbinPermission(modelText, policyPath string) (*CasbinPermission, error) {
	if strings.TrimSpace(modelText) == "" {
		modelText = DefaultModel
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parsing casbin model: %w", err)
	}
	var enforcer *casbin.SyncedEnforcer
	if policyPath != "" {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("creating casbin enforcer: %w", err)
	}
	return &CasbinPermission{enforcer: enforcer}, nil
}

// AddRule adds an allow policy.
func (p *CasbinPermission) AddRule(r Rule) error {
	if r.Subject == "" || r.Model == "" || r.Operation == "" {
		return fmt.Errorf("authz rule needs subject, model and operation")
	}
	if _, err := p.enforcer.AddPolicy(r.Subject, r.Model, r.Operation); err != nil {
		return fmt.Errorf("adding policy: %w", err)
	}
	return nil
}

// AssignRole makes subject inherit role's permissions.
func (p *CasbinPermission) AssignRole(subject, role string) error {
	if _, err := p.enforcer.AddGroupingPolicy(subject, RoleSubject(role)); err != nil {
		return fmt.Errorf("adding role assignment: %w", err)
	}
	return nil
}

// Allow implements admin.Permission. The user's own subject is checked
// first, then each role carried on the user row.
func (p *CasbinPermission) Allow(_ context.Context, user *admin.User, op admin.Operation, target admin.Target) (bool, error) {
	if user == nil {
		return false, nil
	}
	subjects := []string{UserSubject(user.Username)}
	for _, r := range user.Roles {
		subjects = append(subjects, RoleSubject(r))
	}
	for _, sub := range subjects {
		ok, err := p.enforcer.Enforce(sub, target.Model, string(op))
		if err != nil {
			return false, fmt.Errorf("enforcing %s on %s: %w", op, target.Model, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
