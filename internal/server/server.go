// ABOUTME: Server orchestrator that wires database, sessions, models and the HTTP transport
// ABOUTME: Manages listener lifecycle, health endpoints and graceful shutdown

package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/2389/modeladmin/internal/adapter/gormadapter"
	"github.com/2389/modeladmin/internal/adapter/pgxadapter"
	"github.com/2389/modeladmin/internal/adapter/sqladapter"
	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/api"
	"github.com/2389/modeladmin/internal/auth"
	"github.com/2389/modeladmin/internal/authz"
	"github.com/2389/modeladmin/internal/config"
	"github.com/2389/modeladmin/internal/demo"
	"github.com/2389/modeladmin/internal/registry"
	"github.com/2389/modeladmin/internal/store"
	"github.com/2389/modeladmin/internal/transport"
	"github.com/2389/modeladmin/internal/transport/chiapi"
	"github.com/2389/modeladmin/internal/transport/fiberapi"
	"github.com/2389/modeladmin/internal/transport/httpapi"
)

// Server runs the admin API for one configuration.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	db       *sql.DB
	pool     *pgxpool.Pool
	sessions store.SessionStore
	registry *registry.Registry
	auth     *auth.Service
	api      *api.Service
	adapters demo.Adapters
	hasher   admin.Hasher

	httpServer *http.Server
	fiberApp   *fiber.App
}

// New opens the database, applies migrations, registers the demo models and
// builds the configured transport. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: cfg,
		logger: logger.With("component", "server"),
	}
	if err := s.init(ctx); err != nil {
		_ = s.closeResources()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	cfg := s.config

	if err := s.openDatabase(ctx); err != nil {
		return err
	}
	adapters, err := s.buildAdapters()
	if err != nil {
		return err
	}
	s.adapters = adapters

	s.sessions, err = openSessions(ctx, cfg, s.db)
	if err != nil {
		return err
	}

	hasher, err := auth.NewHasher(cfg.Admin.PasswordHasher)
	if err != nil {
		return fmt.Errorf("configuring password hasher: %w", err)
	}
	s.hasher = hasher

	perm, err := buildPermission(cfg.Authz)
	if err != nil {
		return err
	}

	s.registry = registry.New(s.logger)
	err = demo.Register(s.registry, adapters, demo.Options{
		UsernameField: cfg.Admin.UsernameField,
		Hasher:        hasher,
		Permission:    perm,
	})
	if err != nil {
		return fmt.Errorf("registering models: %w", err)
	}

	s.auth = auth.NewService(s.registry, s.sessions, auth.Config{
		UserModel:  cfg.Admin.UserModel,
		SessionTTL: cfg.Sessions.TTL,
		Hasher:     hasher,
	}, s.logger)
	s.api = api.New(s.registry, s.auth, api.Config{
		SiteName:         cfg.Admin.SiteName,
		SiteSignInLogo:   cfg.Admin.SiteSignInLogo,
		SiteHeaderLogo:   cfg.Admin.SiteHeaderLogo,
		SiteFavicon:      cfg.Admin.SiteFavicon,
		PrimaryColor:     cfg.Admin.PrimaryColor,
		DateFormat:       cfg.Admin.DateFormat,
		DateTimeFormat:   cfg.Admin.DateTimeFormat,
		DefaultListLimit: cfg.Admin.DefaultListLimit,
		MaxListLimit:     cfg.Admin.MaxListLimit,
		ExportBatchSize:  cfg.Admin.ExportBatchSize,
	}, s.logger)

	cookie := transport.Cookie{
		Name:   cfg.Sessions.CookieName,
		Secure: cfg.Server.SecureCookie,
		TTL:    cfg.Sessions.TTL,
	}
	switch cfg.Server.Transport {
	case "fiber":
		s.fiberApp = fiberapi.NewApp(s.api, cookie, s.logger)
		s.fiberApp.Get("/health", func(c *fiber.Ctx) error { return c.SendString("OK") })
		s.fiberApp.Get("/health/ready", func(c *fiber.Ctx) error {
			if err := s.Ready(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).SendString(err.Error())
			}
			return c.SendString("ready")
		})
	default:
		s.httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           s.routes(cookie),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return nil
}

// openDatabase connects to the configured database and migrates it.
// Postgres is reached through a pgx pool; database/sql code shares it via stdlib.
func (s *Server) openDatabase(ctx context.Context) error {
	cfg := s.config
	if cfg.Backend == "memory" && cfg.Sessions.Store != "sqlite" {
		return nil
	}

	dialect, err := sqladapter.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	switch dialect {
	case sqladapter.Postgres:
		s.pool, err = pgxadapter.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		s.db = stdlib.OpenDBFromPool(s.pool)
	default:
		path := cfg.Database.Path
		if envPath := os.Getenv("MODELADMIN_DB_PATH"); envPath != "" {
			path = envPath
		}
		s.db, err = store.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
	}

	version, err := demo.Migrate(ctx, s.db, dialect, s.logger)
	if err != nil {
		return err
	}
	s.logger.Info("database ready", "driver", dialect.String(), "schema_version", version)
	return nil
}

func (s *Server) buildAdapters() (demo.Adapters, error) {
	switch s.config.Backend {
	case "memory":
		return demo.MemoryAdapters(), nil
	case "pgx":
		return demo.PgxAdapters(s.pool)
	case "gorm":
		gdb, err := gormadapter.OpenConn(s.db)
		if err != nil {
			return demo.Adapters{}, fmt.Errorf("opening gorm: %w", err)
		}
		return demo.GormAdapters(gdb)
	default:
		dialect, err := sqladapter.ParseDialect(s.config.Database.Driver)
		if err != nil {
			return demo.Adapters{}, err
		}
		return demo.SQLAdapters(s.db, dialect)
	}
}

// openSessions builds the configured session store. The SQLite store
// shares the main database handle.
func openSessions(ctx context.Context, cfg *config.Config, db *sql.DB) (store.SessionStore, error) {
	switch cfg.Sessions.Store {
	case "memory":
		return store.NewMemoryStore(cfg.Sessions.MaxEntries, cfg.Sessions.SweepInterval), nil
	case "redis":
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Sessions.Redis.Addr,
			Password: cfg.Sessions.Redis.Password,
			DB:       cfg.Sessions.Redis.DB,
			Prefix:   cfg.Sessions.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		if db == nil {
			return nil, errors.New("sqlite session store needs a database")
		}
		ss, err := store.NewSQLiteStoreFromDB(db)
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
}

// buildPermission combines the configured casbin policy and CEL expression.
// It returns nil when neither is configured.
func buildPermission(cfg config.AuthzConfig) (admin.Permission, error) {
	var perms authz.All
	if cfg.CasbinModel != "" || cfg.CasbinPolicy != "" || len(cfg.Rules) > 0 {
		var modelText string
		if cfg.CasbinModel != "" {
			data, err := os.ReadFile(cfg.CasbinModel)
			if err != nil {
				return nil, fmt.Errorf("reading casbin model: %w", err)
			}
			modelText = string(data)
		}
		cp, err := authz.NewCasbinPermission(modelText, cfg.CasbinPolicy)
		if err != nil {
			return nil, err
		}
		for _, r := range cfg.Rules {
			rule := authz.Rule{Subject: r.Subject, Model: r.Model, Operation: r.Operation}
			if err := cp.AddRule(rule); err != nil {
				return nil, err
			}
		}
		perms = append(perms, cp)
	}
	if strings.TrimSpace(cfg.Expression) != "" {
		ep, err := authz.NewExprPermission(cfg.Expression)
		if err != nil {
			return nil, err
		}
		perms = append(perms, ep)
	}
	if len(perms) == 0 {
		return nil, nil
	}
	return perms, nil
}

// routes mounts health checks beside the admin API.
func (s *Server) routes(cookie transport.Cookie) http.Handler {
	var apiHandler http.Handler
	if s.config.Server.Transport == "chi" {
		apiHandler = chiapi.NewRouter(s.api, cookie, s.logger)
	} else {
		apiHandler = httpapi.New(s.api, httpapi.Options{Cookie: cookie, Logger: s.logger}).Routes()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.Handle("/api/", apiHandler)
	return mux
}

// Handler returns the HTTP handler for net/http transports, or nil under fiber.
func (s *Server) Handler() http.Handler {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Handler
}

// FiberApp returns the fiber app when the fiber transport is configured.
func (s *Server) FiberApp() *fiber.App {
	return s.fiberApp
}

// API returns the admin API service.
func (s *Server) API() *api.Service {
	return s.api
}

// Registry returns the model registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// CreateSuperuser adds an active superuser to the user model.
func (s *Server) CreateSuperuser(ctx context.Context, username, password string) (admin.ID, error) {
	return demo.CreateSuperuser(ctx, s.adapters.Users, s.hasher, username, password)
}

// MigrationStatus reports every known schema migration and whether it is applied.
func (s *Server) MigrationStatus(ctx context.Context) ([]*goose.MigrationStatus, error) {
	if s.db == nil {
		return nil, errors.New("no database configured for the memory backend")
	}
	dialect, err := sqladapter.ParseDialect(s.config.Database.Driver)
	if err != nil {
		return nil, err
	}
	return demo.MigrationStatus(ctx, s.db, dialect)
}

// Ready reports whether the database answers and models are registered.
func (s *Server) Ready(ctx context.Context) error {
	if s.registry == nil || s.registry.Len() == 0 {
		return errors.New("no models registered")
	}
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
	}
	return nil
}

// Run listens on the configured address until ctx is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled or the server fails,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "transport", s.config.Server.Transport)
		var err error
		if s.fiberApp != nil {
			err = s.fiberApp.Listener(ln)
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the caller's is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the listener and closes every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if s.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	}
	if s.fiberApp != nil {
		errs = appendCloseError(errs, "fiber shutdown", s.fiberApp.ShutdownWithContext(ctx))
	}
	errs = appendCloseError(errs, "resources", s.closeResources())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// Close releases resources without serving. Use it when Run was never called.
func (s *Server) Close() error {
	return s.closeResources()
}

func (s *Server) closeResources() error {
	var errs []error
	if s.registry != nil {
		s.registry.Close()
		s.registry = nil
	}
	if s.sessions != nil {
		errs = appendCloseError(errs, "session store close", s.sessions.Close())
		s.sessions = nil
	}
	if s.db != nil {
		errs = appendCloseError(errs, "database close", s.db.Close())
		s.db = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return errors.Join(errs...)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the database answers and models are registered.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.Ready(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
