// Package demo provides a ready-to-run admin site: a sign-in user model with
// inline messages and a UUID-keyed event model.
//
// The schema ships as goose migrations for SQLite and Postgres. Adapters can
// be built for database/sql, pgx, gorm or memory, so the same descriptors
// run against any backend the server is configured for.
package demo
