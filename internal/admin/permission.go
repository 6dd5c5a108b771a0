// ABOUTME: Operations, the authenticated user, and the per-model permission predicate
// ABOUTME: Descriptors without a predicate allow every operation to an authenticated superuser

package admin

import "context"

// Operation is one of the admin pipeline's entry points.
type Operation string

const (
	OpList          Operation = "list"
	OpView          Operation = "view"
	OpAdd           Operation = "add"
	OpChange        Operation = "change"
	OpDelete        Operation = "delete"
	OpExport        Operation = "export"
	OpAction        Operation = "action"
	OpConfiguration Operation = "configuration"
)

// User is the authenticated identity resolved from a session.
type User struct {
	ID          ID
	Username    string
	IsSuperuser bool
	IsActive    bool
	Roles       []string
	Row         Row
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Target identifies what an operation acts on.
type Target struct {
	Model  string
	ID     *ID
	Action string
}

// Permission decides whether user may perform op on target.
type Permission interface {
	Allow(ctx context.Context, user *User, op Operation, target Target) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context, user *User, op Operation, target Target) (bool, error)

func (f PermissionFunc) Allow(ctx context.Context, user *User, op Operation, target Target) (bool, error) {
	return f(ctx, user, op, target)
}

// AllowAll permits everything.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, *User, Operation, Target) (bool, error) { return true, nil }

// ReadOnly permits list, view, export and configuration only.
type ReadOnly struct{}

func (ReadOnly) Allow(_ context.Context, _ *User, op Operation, _ Target) (bool, error) {
	switch op {
	case OpList, OpView, OpExport, OpConfiguration:
		return true, nil
	}
	return false, nil
}

// userContextKey is the key type for storing the User in context.Context.
type userContextKey struct{}

// WithUser returns a context carrying user. The pipeline attaches the user
// before it calls adapters, permission predicates and action handlers.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user attached by WithUser, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
