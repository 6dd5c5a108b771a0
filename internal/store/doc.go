// Package store persists admin sessions.
//
// # Backends
//
// Three SessionStore implementations share one contract:
//
//   - SQLiteStore: sessions in an admin_sessions table, usually in the same
//     database file as the admin models (see OpenSQLite)
//   - MemoryStore: process-local map with TTL expiry and oldest-first eviction
//   - RedisStore: one key per session with a Redis TTL, for multi-replica setups
//
// Expired sessions are invisible to GetSession and DeleteSession on every
// backend, whether or not they have been swept yet.
//
// # SQLite Configuration
//
// OpenSQLite enables WAL mode and foreign keys:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Testing
//
// Use NewMemoryStore(0, time.Minute) for unit tests and NewSQLiteStore with a
// t.TempDir() path for integration tests. Redis tests run only when
// MODELADMIN_TEST_REDIS_ADDR is set.
package store
