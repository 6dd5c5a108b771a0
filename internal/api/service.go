// ABOUTME: API service: the single pipeline behind every admin endpoint
// ABOUTME: Resolves session and model, authorizes, calls the adapter and translates errors

package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/auth"
	"github.com/2389/modeladmin/internal/registry"
)

// Defaults for Config.
const (
	DefaultListLimit       = 10
	DefaultMaxListLimit    = 1000
	DefaultExportBatchSize = 500
	DefaultDateFormat      = "YYYY-MM-DD"
	DefaultDateTimeFormat  = "YYYY-MM-DD HH:mm"
)

// Config holds site settings and list limits.
type Config struct {
	SiteName       string
	SiteSignInLogo string
	SiteHeaderLogo string
	SiteFavicon    string
	PrimaryColor   string
	DateFormat     string
	DateTimeFormat string

	DefaultListLimit int
	MaxListLimit     int
	ExportBatchSize  int
}

func (c Config) withDefaults() Config {
	if c.SiteName == "" {
		c.SiteName = "Admin"
	}
	if c.DateFormat == "" {
		c.DateFormat = DefaultDateFormat
	}
	if c.DateTimeFormat == "" {
		c.DateTimeFormat = DefaultDateTimeFormat
	}
	if c.DefaultListLimit <= 0 {
		c.DefaultListLimit = DefaultListLimit
	}
	if c.MaxListLimit <= 0 {
		c.MaxListLimit = DefaultMaxListLimit
	}
	if c.DefaultListLimit > c.MaxListLimit {
		c.DefaultListLimit = c.MaxListLimit
	}
	if c.ExportBatchSize <= 0 {
		c.ExportBatchSize = DefaultExportBatchSize
	}
	return c
}

// Service implements every admin operation. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	registry  *registry.Registry
	auth      *auth.Service
	cfg       Config
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// New creates the API service.
func New(reg *registry.Registry, authService *auth.Service, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  reg,
		auth:      authService,
		cfg:       cfg.withDefaults(),
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With("component", "api"),
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Registry returns the model registry the service dispatches on.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// begin runs the shared prologue: session, model, authorization.
func (s *Service) begin(ctx context.Context, sessionID, model string, op admin.Operation, target admin.Target) (context.Context, *admin.User, *admin.Descriptor, error) {
	user, err := s.auth.RequireUser(ctx, sessionID)
	if err != nil {
		return ctx, nil, nil, s.fail(ctx, string(op), err)
	}
	d, err := s.registry.Resolve(model)
	if err != nil {
		return ctx, nil, nil, err
	}
	target.Model = d.Name
	if err := s.authorize(ctx, user, d, op, target); err != nil {
		return ctx, nil, nil, s.fail(ctx, string(op), err)
	}
	return admin.WithUser(ctx, user), user, d, nil
}

// authorize applies the registry role restriction, then the descriptor's
// permission. Inline models without their own permission use their parent's.
func (s *Service) authorize(ctx context.Context, user *admin.User, d *admin.Descriptor, op admin.Operation, target admin.Target) error {
	if roles := s.registry.Roles(d.Name); len(roles) > 0 {
		allowed := false
		for _, r := range roles {
			if user.HasRole(r) {
				allowed = true
				break
			}
		}
		if !allowed {
			return apierr.Forbidden("You do not have access to this model")
		}
	}

	perm := d.Permission
	if perm == nil {
		if parent, _, ok := s.registry.Parent(d.Name); ok {
			if pd, err := s.registry.Resolve(parent); err == nil {
				perm = pd.Permission
			}
		}
	}
	if perm == nil {
		return nil
	}
	ok, err := perm.Allow(ctx, user, op, target)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.Forbidden("You do not have permission to " + string(op) + " " + d.Name)
	}
	return nil
}

// allowed reports whether op is permitted, treating errors as a denial.
func (s *Service) allowed(ctx context.Context, user *admin.User, d *admin.Descriptor, op admin.Operation) bool {
	return s.authorize(ctx, user, d, op, admin.Target{Model: d.Name}) == nil
}

// fail is the translation boundary: typed errors pass through, anything
// else is logged and becomes an internal error.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("request cancelled", "op", op)
	} else {
		s.logger.Error("admin operation failed", "op", op, "error", err)
	}
	return apierr.Wrap(apierr.KindInternal, err, apierr.InternalDetail)
}

// SignIn authenticates and returns the new session id.
func (s *Service) SignIn(ctx context.Context, existingSessionID string, req SignInRequest) (string, error) {
	sid, err := s.auth.SignIn(ctx, existingSessionID, req.Username, req.Password)
	if err != nil {
		return "", s.fail(ctx, "sign-in", err)
	}
	return sid, nil
}

// SignOut ends the session. Signing out without a valid session is Unauthorized.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if _, ok := s.auth.UserID(ctx, sessionID); !ok {
		return apierr.Unauthorized(auth.DetailNotAuthenticated)
	}
	if _, err := s.auth.SignOut(ctx, sessionID); err != nil {
		return s.fail(ctx, "sign-out", err)
	}
	return nil
}

// Me returns the serialized row of the signed-in user. Role and permission
// checks do not apply.
func (s *Service) Me(ctx context.Context, sessionID string) (map[string]any, error) {
	user, err := s.auth.RequireUser(ctx, sessionID)
	if err != nil {
		return nil, s.fail(ctx, "me", err)
	}
	d, _, err := s.auth.UserDescriptor()
	if err != nil {
		return nil, err
	}
	return d.Serialize(user.Row), nil
}
