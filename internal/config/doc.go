// Package config handles configuration loading for the modeladmin server.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Files ending in .toml are read as TOML; anything else as YAML.
// Missing values get defaults, and the result is validated before use.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from MODELADMIN_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/modeladmin/config.yaml (~/.config when unset)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  driver: postgres
//	  dsn: "${MODELADMIN_DSN}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  shutdown_timeout: "10s"
//	sessions:
//	  ttl: "168h"
//	  sweep_interval: "1m"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8000"
//	  transport: stdlib        # stdlib, chi or fiber
//	database:
//	  driver: sqlite           # sqlite or postgres
//	  path: "./modeladmin.db"
//	backend: sql               # sql, gorm, pgx or memory
//	sessions:
//	  store: sqlite            # sqlite, memory or redis
//	  cookie_name: admin_session_id
//	  redis:
//	    addr: "localhost:6379"
//	admin:
//	  site_name: "Admin"
//	  user_model: user
//	  username_field: username
//	  default_list_limit: 10
//	  max_list_limit: 1000
//	authz:
//	  rules:
//	    - {subject: "role:staff", model: "*", operation: list}
//	  expression: 'user.is_superuser || op == "list"'
//	logging:
//	  level: info
//	  format: text             # text or json
//
// # Validation
//
// Validate returns the first problem found. Backends and session stores
// must match the database driver: pgx needs postgres, while gorm and the
// sqlite session store need sqlite.
//
// # Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
