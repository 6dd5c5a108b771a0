// ABOUTME: Configuration loading and parsing for the modeladmin server
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "MODELADMIN_CONFIG"

// Default values applied by Load.
const (
	DefaultHTTPAddr        = "127.0.0.1:8000"
	DefaultTransport       = "stdlib"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDatabaseDriver  = "sqlite"
	DefaultDatabasePath    = "./modeladmin.db"
	DefaultBackend         = "sql"
	DefaultSessionStore    = "sqlite"
	DefaultCookieName      = "admin_session_id"
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultSessionEntries  = 10000
	DefaultSessionSweep    = time.Minute
	DefaultUserModel       = "user"
	DefaultUsernameField   = "username"
	DefaultPasswordHasher  = "bcrypt"
)

// Config represents the complete modeladmin configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Backend  string         `yaml:"backend" toml:"backend"`
	Sessions SessionsConfig `yaml:"sessions" toml:"sessions"`
	Admin    AdminConfig    `yaml:"admin" toml:"admin"`
	Authz    AuthzConfig    `yaml:"authz" toml:"authz"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// Transport picks the HTTP stack: stdlib, chi or fiber.
	Transport    string `yaml:"transport" toml:"transport"`
	SecureCookie bool   `yaml:"secure_cookie" toml:"secure_cookie"`

	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// SessionsConfig holds session storage and cookie configuration
type SessionsConfig struct {
	// Store is sqlite, memory or redis.
	Store      string `yaml:"store" toml:"store"`
	CookieName string `yaml:"cookie_name" toml:"cookie_name"`
	MaxEntries int    `yaml:"max_entries" toml:"max_entries"`

	TTL           time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TTLRaw           string `yaml:"ttl" toml:"ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval"`

	Redis RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig holds the Redis session store connection
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// AdminConfig holds site presentation and list settings
type AdminConfig struct {
	SiteName       string `yaml:"site_name" toml:"site_name"`
	SiteSignInLogo string `yaml:"site_sign_in_logo" toml:"site_sign_in_logo"`
	SiteHeaderLogo string `yaml:"site_header_logo" toml:"site_header_logo"`
	SiteFavicon    string `yaml:"site_favicon" toml:"site_favicon"`
	PrimaryColor   string `yaml:"primary_color" toml:"primary_color"`

	UserModel      string `yaml:"user_model" toml:"user_model"`
	UsernameField  string `yaml:"username_field" toml:"username_field"`
	PasswordHasher string `yaml:"password_hasher" toml:"password_hasher"`

	DefaultListLimit int `yaml:"default_list_limit" toml:"default_list_limit"`
	MaxListLimit     int `yaml:"max_list_limit" toml:"max_list_limit"`
	ExportBatchSize  int `yaml:"export_batch_size" toml:"export_batch_size"`

	DateFormat     string `yaml:"date_format" toml:"date_format"`
	DateTimeFormat string `yaml:"datetime_format" toml:"datetime_format"`
}

// AuthzConfig holds optional permission policies applied to models that
// declare none of their own.
type AuthzConfig struct {
	CasbinModel  string      `yaml:"casbin_model" toml:"casbin_model"`
	CasbinPolicy string      `yaml:"casbin_policy" toml:"casbin_policy"`
	Rules        []AuthzRule `yaml:"rules,omitempty" toml:"rules,omitempty"`
	// Expression is a CEL expression evaluated per request.
	Expression string `yaml:"expression" toml:"expression"`
}

// AuthzRule grants a subject an operation on a model. Either may be "*".
type AuthzRule struct {
	Subject   string `yaml:"subject" toml:"subject"`
	Model     string `yaml:"model" toml:"model"`
	Operation string `yaml:"operation" toml:"operation"`
}

// Enabled reports whether any permission policy is configured.
func (a AuthzConfig) Enabled() bool {
	return a.CasbinModel != "" || a.CasbinPolicy != "" || len(a.Rules) > 0 || a.Expression != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the file format from the path extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes configuration data in the given format, then expands,
// defaults and validates it.
func Parse(data []byte, format Format) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Marshal renders cfg in the given format.
func (c *Config) Marshal(format Format) ([]byte, error) {
	c.syncRaw()
	if format == FormatTOML {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return []byte(sb.String()), nil
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}

// syncRaw copies parsed durations back to their raw string fields.
func (c *Config) syncRaw() {
	if c.Server.ShutdownTimeout > 0 {
		c.Server.ShutdownTimeoutRaw = c.Server.ShutdownTimeout.String()
	}
	if c.Sessions.TTL > 0 {
		c.Sessions.TTLRaw = c.Sessions.TTL.String()
	}
	if c.Sessions.SweepInterval > 0 {
		c.Sessions.SweepIntervalRaw = c.Sessions.SweepInterval.String()
	}
}

// DefaultPath returns the config path to use when none is given on the
// command line: $MODELADMIN_CONFIG, then $XDG_CONFIG_HOME/modeladmin/config.yaml,
// then ~/.config/modeladmin/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "modeladmin", "config.yaml")
}

// expandEnvVars replaces ${VAR_NAME} with the variable's value. Unset
// variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.Transport == "" {
		c.Server.Transport = DefaultTransport
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Sessions.Store == "" {
		c.Sessions.Store = DefaultSessionStore
	}
	if c.Sessions.CookieName == "" {
		c.Sessions.CookieName = DefaultCookieName
	}
	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = DefaultSessionTTL
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = DefaultSessionSweep
	}
	if c.Sessions.MaxEntries == 0 {
		c.Sessions.MaxEntries = DefaultSessionEntries
	}
	if c.Admin.SiteName == "" {
		c.Admin.SiteName = "Admin"
	}
	if c.Admin.UserModel == "" {
		c.Admin.UserModel = DefaultUserModel
	}
	if c.Admin.UsernameField == "" {
		c.Admin.UsernameField = DefaultUsernameField
	}
	if c.Admin.PasswordHasher == "" {
		c.Admin.PasswordHasher = DefaultPasswordHasher
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that the configuration is usable and returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	switch c.Server.Transport {
	case "stdlib", "chi", "fiber":
	default:
		return fmt.Errorf("server.transport must be stdlib, chi or fiber, got %q", c.Server.Transport)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	switch c.Backend {
	case "sql", "gorm", "memory":
	case "pgx":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("backend pgx requires database.driver postgres")
		}
	default:
		return fmt.Errorf("backend must be sql, gorm, pgx or memory, got %q", c.Backend)
	}
	if c.Backend == "gorm" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("backend gorm requires database.driver sqlite")
	}

	switch c.Sessions.Store {
	case "memory":
	case "sqlite":
		if c.Database.Driver != "sqlite" {
			return fmt.Errorf("sessions.store sqlite requires database.driver sqlite")
		}
	case "redis":
		if c.Sessions.Redis.Addr == "" {
			return fmt.Errorf("sessions.redis.addr is required when sessions.store is redis")
		}
	default:
		return fmt.Errorf("sessions.store must be sqlite, memory or redis, got %q", c.Sessions.Store)
	}
	if c.Sessions.TTL < 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if c.Sessions.MaxEntries < 0 {
		return fmt.Errorf("sessions.max_entries must not be negative")
	}

	if c.Admin.DefaultListLimit < 0 || c.Admin.MaxListLimit < 0 || c.Admin.ExportBatchSize < 0 {
		return fmt.Errorf("admin list limits must not be negative")
	}
	if c.Admin.MaxListLimit > 0 && c.Admin.DefaultListLimit > c.Admin.MaxListLimit {
		return fmt.Errorf("admin.default_list_limit %d exceeds admin.max_list_limit %d",
			c.Admin.DefaultListLimit, c.Admin.MaxListLimit)
	}
	switch c.Admin.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("admin.password_hasher must be bcrypt or argon2id, got %q", c.Admin.PasswordHasher)
	}

	for i, r := range c.Authz.Rules {
		if r.Subject == "" || r.Model == "" || r.Operation == "" {
			return fmt.Errorf("authz.rules[%d] needs subject, model and operation", i)
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Sessions.TTLRaw != "" {
		cfg.Sessions.TTL, err = time.ParseDuration(cfg.Sessions.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Sessions.TTLRaw, err)
		}
	}

	if cfg.Sessions.SweepIntervalRaw != "" {
		cfg.Sessions.SweepInterval, err = time.ParseDuration(cfg.Sessions.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Sessions.SweepIntervalRaw, err)
		}
	}

	return nil
}
