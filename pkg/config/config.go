// Package config loads application configuration from environment
// variables, with an optional YAML file applied underneath the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flashlightplugins/registry/pkg/observability"
	"github.com/flashlightplugins/registry/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Service behavior
	Service ServiceConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ServiceConfig holds plugin-directory behavior settings
type ServiceConfig struct {
	// PublicBaseURL is the externally visible origin used to build serve
	// URLs for stored blobs, e.g. "https://flashlightplugins.example.com".
	PublicBaseURL string

	// AdminTokens are the bearer tokens recognized as administrators.
	AdminTokens []string

	// AppcastURL is the Sparkle feed the latest-download redirect reads.
	AppcastURL string

	// CategoriesWarmSchedule is a cron expression for the background
	// categories cache warmer. Empty disables the warmer.
	CategoriesWarmSchedule string

	// UploadMaxBytes caps the request body size on the upload endpoint.
	UploadMaxBytes int64
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from the environment. When
// REGISTRY_CONFIG_FILE names a YAML file, its values fill in anything the
// environment leaves unset.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Service:       loadServiceConfig(),
		Observability: loadObservabilityConfig(),
	}

	if path := os.Getenv("REGISTRY_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("REGISTRY_HOST", "0.0.0.0"),
		Port:            getEnv("REGISTRY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("REGISTRY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("REGISTRY_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("REGISTRY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("REGISTRY_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("REGISTRY_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("REGISTRY_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("REGISTRY_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("REGISTRY_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// S3 config
	if s3Endpoint := getEnv("REGISTRY_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("REGISTRY_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("REGISTRY_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("REGISTRY_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("REGISTRY_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("REGISTRY_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	// Redis config
	if redisURL := getEnv("REGISTRY_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("REGISTRY_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("REGISTRY_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("REGISTRY_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache TTL overrides, REGISTRY_TTL_<CLASS>
	for _, class := range []string{storage.TTLConsoleKey, storage.TTLCategories, storage.TTLDownloadURL, storage.TTLPlugin} {
		envKey := "REGISTRY_TTL_" + strings.ToUpper(class)
		if ttl := getEnvDuration(envKey, 0); ttl > 0 {
			cfg.CacheTTL[class] = ttl
		}
	}

	return cfg
}

func loadServiceConfig() ServiceConfig {
	cfg := ServiceConfig{
		PublicBaseURL:          getEnv("REGISTRY_PUBLIC_BASE_URL", "http://localhost:8080"),
		AppcastURL:             getEnv("REGISTRY_APPCAST_URL", ""),
		CategoriesWarmSchedule: getEnv("REGISTRY_CATEGORIES_WARM_SCHEDULE", ""),
		UploadMaxBytes:         getEnvInt64("REGISTRY_UPLOAD_MAX_BYTES", 32<<20),
	}

	if tokens := getEnv("REGISTRY_ADMIN_TOKENS", ""); tokens != "" {
		for _, token := range strings.Split(tokens, ",") {
			if token = strings.TrimSpace(token); token != "" {
				cfg.AdminTokens = append(cfg.AdminTokens, token)
			}
		}
	}

	return cfg
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(strings.ToLower(getEnv("REGISTRY_LOG_LEVEL", "info"))),
		MetricsEnabled:     getEnvBool("REGISTRY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("REGISTRY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("REGISTRY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("REGISTRY_OTEL_SERVICE_NAME", "plugin-registry"),
		OTelServiceVersion: getEnv("REGISTRY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("REGISTRY_OTEL_INSECURE", true),
	}
}

// fileConfig is the YAML shape of the optional config file. Only values
// the environment left at their zero/default are taken from it.
type fileConfig struct {
	PublicBaseURL string   `yaml:"public_base_url"`
	AdminTokens   []string `yaml:"admin_tokens"`
	AppcastURL    string   `yaml:"appcast_url"`
	PostgresURL   string   `yaml:"postgres_url"`
	RedisURL      string   `yaml:"redis_url"`
	S3Endpoint    string   `yaml:"s3_endpoint"`
	S3Bucket      string   `yaml:"s3_bucket"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if os.Getenv("REGISTRY_PUBLIC_BASE_URL") == "" && fc.PublicBaseURL != "" {
		c.Service.PublicBaseURL = fc.PublicBaseURL
	}
	if len(c.Service.AdminTokens) == 0 {
		c.Service.AdminTokens = fc.AdminTokens
	}
	if c.Service.AppcastURL == "" {
		c.Service.AppcastURL = fc.AppcastURL
	}
	if c.Storage.PostgresURL == "" {
		c.Storage.PostgresURL = fc.PostgresURL
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = fc.RedisURL
	}
	if c.Storage.S3Endpoint == "" {
		c.Storage.S3Endpoint = fc.S3Endpoint
	}
	if c.Storage.S3Bucket == "" {
		c.Storage.S3Bucket = fc.S3Bucket
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Service.PublicBaseURL == "" {
		return fmt.Errorf("public base URL is required")
	}
	if c.Service.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload size limit must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
