// Package storage provides the persistence backends for the plugin
// directory: PostgreSQL for plugin records, S3 for blob content (zip
// archives and published images), and Redis for short-lived caches and
// console keys.
//
// # Layout
//
//   - interfaces.go: shared Config with per-key-class cache TTLs
//   - postgres/: PostgreSQL record store, S3 blob store, Redis client
//
// Record and blob stores satisfy the interfaces declared in pkg/registry;
// the API layer never touches a concrete backend directly.
//
// # Configuration
//
//	cfg := storage.DefaultConfig()
//	cfg.PostgresURL = "postgres://localhost/plugins"
//	cfg.S3Bucket = "plugin-archives"
//	cfg.RedisURL = "redis://localhost:6379"
//
// Cache TTLs are injected through Config.CacheTTL so tests can shrink the
// 60-minute console-key window or the 10-minute category cache without
// waiting on the wall clock.
package storage
