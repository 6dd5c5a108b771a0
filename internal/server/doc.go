// Package server wires a configuration into a running admin site.
//
// New opens the database (SQLite through modernc or Postgres through a pgx
// pool), applies the demo migrations, builds adapters for the configured
// backend, opens the session store, compiles any casbin or CEL policy and
// registers the demo models. The admin API is then served over net/http,
// chi or fiber, with /health and /health/ready beside it.
//
// Run blocks until its context is canceled and then shuts down gracefully
// within server.shutdown_timeout.
package server
