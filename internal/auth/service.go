// ABOUTME: Session-based authentication against whichever model is configured as the user model
// ABOUTME: Owns sign-in, sign-out, session-to-user resolution and password changes

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
	"github.com/2389/modeladmin/internal/registry"
	"github.com/2389/modeladmin/internal/store"
)

// Client-facing details for authentication failures.
const (
	DetailInvalidCredentials = "Invalid credentials"
	DetailNotAuthenticated   = "User is not authenticated"
)

// DefaultSessionTTL applies when Config.SessionTTL is zero.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Config configures the Service.
type Config struct {
	// UserModel is the registered model name used for sign-in.
	UserModel string
	// SessionTTL is how long a session lives after sign-in.
	SessionTTL time.Duration
	// Hasher is used when the user model does not set its own.
	Hasher admin.Hasher
}

// Service authenticates admin users. It is safe for concurrent use.
type Service struct {
	registry *registry.Registry
	sessions store.SessionStore
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an authentication service.
func NewService(reg *registry.Registry, sessions store.SessionStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: reg,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
}

// UserModelName returns the configured user model name.
func (s *Service) UserModelName() string {
	return s.cfg.UserModel
}

// UserDescriptor resolves the user model. An unregistered user model is
// reported as Unauthorized: nobody can be signed in without it.
func (s *Service) UserDescriptor() (*admin.Descriptor, admin.UserModel, error) {
	d, err := s.registry.Resolve(s.cfg.UserModel)
	if err != nil {
		return nil, admin.UserModel{}, apierr.Wrap(apierr.KindUnauthorized, err, DetailNotAuthenticated)
	}
	um := admin.UserModel{}
	if d.User != nil {
		um = *d.User
	}
	return d, um.WithDefaults(), nil
}

// Hasher returns the hasher for the user model d.
func (s *Service) Hasher(um admin.UserModel) admin.Hasher {
	if um.Hasher != nil {
		return um.Hasher
	}
	return s.cfg.Hasher
}

// SignIn verifies credentials and returns a new session id. A previous
// session id presented by the client is invalidated first.
func (s *Service) SignIn(ctx context.Context, existingSessionID, username, password string) (string, error) {
	d, um, err := s.UserDescriptor()
	if err != nil {
		return "", apierr.Unauthorized(DetailInvalidCredentials)
	}

	var (
		id admin.ID
		ok bool
	)
	if um.Authenticate != nil {
		id, ok, err = um.Authenticate(ctx, d, username, password)
	} else {
		id, ok, err = s.authenticate(ctx, d, um, username, password)
	}
	if err != nil {
		return "", fmt.Errorf("authenticating %q: %w", username, err)
	}
	if !ok {
		s.logger.Info("sign-in rejected", "username", username)
		return "", apierr.Unauthorized(DetailInvalidCredentials)
	}

	user, err := s.loadUser(ctx, d, um, id)
	if err != nil {
		return "", err
	}
	if user == nil || !user.IsActive || !user.IsSuperuser {
		s.logger.Info("sign-in rejected for inactive or non-superuser account", "username", username)
		return "", apierr.Unauthorized(DetailInvalidCredentials)
	}

	if existingSessionID != "" {
		if _, err := s.sessions.DeleteSession(ctx, existingSessionID); err != nil {
			return "", fmt.Errorf("deleting previous session: %w", err)
		}
	}

	sessionID, err := generateSecureToken(32)
	if err != nil {
		return "", err
	}
	now := s.now()
	session := &store.Session{
		ID:        sessionID,
		UserID:    id.String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("admin sign-in successful", "username", username, "user_id", id.String())
	return sessionID, nil
}

// authenticate looks the user up by the configured username field and
// verifies the password. Unknown users still pay for one hash comparison.
func (s *Service) authenticate(ctx context.Context, d *admin.Descriptor, um admin.UserModel, username, password string) (admin.ID, bool, error) {
	hasher := s.Hasher(um)
	if username == "" || password == "" {
		_, _ = hasher.Verify(dummyHash, password)
		return admin.ID{}, false, nil
	}

	lookup := any(username)
	if f, ok := d.Field(um.UsernameField); ok {
		v, err := admin.Coerce(f, username)
		if err != nil {
			_, _ = hasher.Verify(dummyHash, password)
			return admin.ID{}, false, nil
		}
		lookup = v
	}

	rows, _, err := d.Adapter.List(ctx, admin.ListQuery{
		Filters: []admin.Filter{{Field: um.UsernameField, Op: admin.OpExact, Value: lookup}},
		Limit:   2,
	})
	if err != nil {
		return admin.ID{}, false, err
	}
	if len(rows) != 1 {
		_, _ = hasher.Verify(dummyHash, password)
		return admin.ID{}, false, nil
	}

	var hash string
	switch v := rows[0][um.PasswordField].(type) {
	case string:
		hash = v
	case []byte:
		hash = string(v)
	}
	ok, err := hasher.Verify(hash, password)
	if err != nil {
		s.logger.Warn("stored password hash could not be verified", "username", username, "error", err)
		return admin.ID{}, false, nil
	}
	if !ok {
		return admin.ID{}, false, nil
	}

	id, err := admin.IDFromValue(rows[0][d.PK()])
	if err != nil {
		return admin.ID{}, false, fmt.Errorf("user row primary key: %w", err)
	}
	return id, true, nil
}

// SignOut deletes the session. It is idempotent and reports whether a live
// session was removed.
func (s *Service) SignOut(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	deleted, err := s.sessions.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return deleted, nil
}

// UserID resolves a session to its user id. It never fails; any problem
// reads as "no user".
func (s *Service) UserID(ctx context.Context, sessionID string) (admin.ID, bool) {
	if sessionID == "" {
		return admin.ID{}, false
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			s.logger.Error("failed to load session", "error", err)
		}
		return admin.ID{}, false
	}
	id, err := admin.ParseID(session.UserID)
	if err != nil {
		s.logger.Error("session holds an invalid user id", "user_id", session.UserID)
		return admin.ID{}, false
	}
	return id, true
}

// RequireUser resolves the session to an active superuser or fails with Unauthorized.
func (s *Service) RequireUser(ctx context.Context, sessionID string) (*admin.User, error) {
	id, ok := s.UserID(ctx, sessionID)
	if !ok {
		return nil, apierr.Unauthorized(DetailNotAuthenticated)
	}
	d, um, err := s.UserDescriptor()
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, d, um, id)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || !user.IsSuperuser {
		return nil, apierr.Unauthorized(DetailNotAuthenticated)
	}
	return user, nil
}

func (s *Service) loadUser(ctx context.Context, d *admin.Descriptor, um admin.UserModel, id admin.ID) (*admin.User, error) {
	row, err := d.Adapter.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	if row == nil {
		return nil, nil
	}
	return um.UserFromRow(d.PK(), row)
}

// ChangePassword stores a new hash for the user with the given id.
func (s *Service) ChangePassword(ctx context.Context, id admin.ID, password string) error {
	if password == "" {
		return apierr.Validation("password is required")
	}
	d, um, err := s.UserDescriptor()
	if err != nil {
		return err
	}
	hash, err := s.Hasher(um).Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	row, err := d.Adapter.Change(ctx, id, admin.Row{um.PasswordField: hash})
	if err != nil {
		return fmt.Errorf("storing password: %w", err)
	}
	if row == nil {
		return apierr.NotFoundf("%s not found", d.Name)
	}
	s.logger.Info("password changed", "user_id", id.String())
	return nil
}

// generateSecureToken returns n random bytes hex-encoded.
func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
