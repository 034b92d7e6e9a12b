package storage

import "time"

// Cache key classes with their injected time-to-live values. Tests shrink
// these to exercise expiry without waiting on the wall clock.
const (
	TTLConsoleKey  = "console_key"
	TTLCategories  = "categories"
	TTLDownloadURL = "download_url"
	TTLPlugin      = "plugin"
)

// Config for the storage backends.
type Config struct {
	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// S3 config (blob store for zip archives and published images)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis config (console keys, category and download-URL caches)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheTTL map[string]time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		S3Region:         "us-east-1",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheTTL: map[string]time.Duration{
			TTLConsoleKey:  60 * time.Minute,
			TTLCategories:  10 * time.Minute,
			TTLDownloadURL: 10 * time.Minute,
			TTLPlugin:      5 * time.Minute,
		},
	}
}

// TTL returns the configured time-to-live for a cache key class, or zero
// when none is configured (callers treat zero as "no caching").
func (c Config) TTL(class string) time.Duration {
	if c.CacheTTL == nil {
		return 0
	}
	return c.CacheTTL[class]
}
