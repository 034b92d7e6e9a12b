package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flashlightplugins/registry/pkg/registry"
	"github.com/flashlightplugins/registry/pkg/storage"
)

var tracer = otel.Tracer("registry/storage/postgres")

// Store implements registry.PluginStore on PostgreSQL.
type Store struct {
	db     *sql.DB
	config storage.Config
}

// NewStore connects to PostgreSQL and ensures the schema exists.
func NewStore(config storage.Config) (*Store, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db, config: config}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests with sqlmock.
func NewStoreWithDB(db *sql.DB, config storage.Config) *Store {
	return &Store{db: db, config: config}
}

// DB exposes the underlying connection for collaborators that run their own
// SQL, like the search service and the health checker.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS plugins (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		info_json TEXT NOT NULL DEFAULT '',
		categories TEXT[] NOT NULL DEFAULT '{}',
		icon_url TEXT NOT NULL DEFAULT '',
		screenshot_url TEXT NOT NULL DEFAULT '',
		zip_url TEXT NOT NULL DEFAULT '',
		zip_md5 TEXT NOT NULL DEFAULT '',
		secret TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		downloads BIGINT NOT NULL DEFAULT 0,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_plugins_name ON plugins(name);
	CREATE INDEX IF NOT EXISTS idx_plugins_secret ON plugins(secret);
	CREATE INDEX IF NOT EXISTS idx_plugins_approved ON plugins(approved);
	CREATE INDEX IF NOT EXISTS idx_plugins_categories ON plugins USING GIN(categories);
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure plugins table: %w", err)
	}
	return nil
}

const pluginColumns = `id, name, info_json, categories, icon_url, screenshot_url,
	zip_url, zip_md5, secret, notes, downloads, approved, created_at, updated_at`

func scanPlugin(row interface{ Scan(...interface{}) error }) (*registry.Plugin, error) {
	var p registry.Plugin
	err := row.Scan(
		&p.ID, &p.Name, &p.InfoJSON, pq.Array(&p.Categories), &p.IconURL,
		&p.ScreenshotURL, &p.ZipURL, &p.ZipMD5, &p.Secret, &p.Notes,
		&p.Downloads, &p.Approved, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlugin inserts a new plugin record.
func (s *Store) CreatePlugin(ctx context.Context, plugin *registry.Plugin) error {
	ctx, span := tracer.Start(ctx, "Store.CreatePlugin",
		trace.WithAttributes(attribute.String("plugin.name", plugin.Name)),
	)
	defer span.End()

	query := `
		INSERT INTO plugins (
			name, info_json, categories, icon_url, screenshot_url,
			zip_url, zip_md5, secret, notes, downloads, approved
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		plugin.Name, plugin.InfoJSON, pq.Array(plugin.Categories),
		plugin.IconURL, plugin.ScreenshotURL, plugin.ZipURL, plugin.ZipMD5,
		plugin.Secret, plugin.Notes, plugin.Downloads, plugin.Approved,
	).Scan(&plugin.ID, &plugin.CreatedAt, &plugin.UpdatedAt)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("failed to create plugin: %w", err)
	}
	return nil
}

// UpdatePlugin overwrites an existing plugin record.
func (s *Store) UpdatePlugin(ctx context.Context, plugin *registry.Plugin) error {
	ctx, span := tracer.Start(ctx, "Store.UpdatePlugin",
		trace.WithAttributes(attribute.Int64("plugin.id", plugin.ID)),
	)
	defer span.End()

	query := `
		UPDATE plugins SET
			name = $1, info_json = $2, categories = $3, icon_url = $4,
			screenshot_url = $5, zip_url = $6, zip_md5 = $7, secret = $8,
			notes = $9, downloads = $10, approved = $11, updated_at = NOW()
		WHERE id = $12
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		plugin.Name, plugin.InfoJSON, pq.Array(plugin.Categories),
		plugin.IconURL, plugin.ScreenshotURL, plugin.ZipURL, plugin.ZipMD5,
		plugin.Secret, plugin.Notes, plugin.Downloads, plugin.Approved,
		plugin.ID,
	).Scan(&plugin.UpdatedAt)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("failed to update plugin: %w", err)
	}
	return nil
}

// GetPluginByName returns the approved record for a name, nil when none.
func (s *Store) GetPluginByName(ctx context.Context, name string) (*registry.Plugin, error) {
	ctx, span := tracer.Start(ctx, "Store.GetPluginByName",
		trace.WithAttributes(attribute.String("plugin.name", name)),
	)
	defer span.End()

	query := `SELECT ` + pluginColumns + `
		FROM plugins WHERE name = $1 AND approved ORDER BY updated_at DESC LIMIT 1`

	p, err := scanPlugin(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to get plugin by name: %w", err)
	}
	return p, nil
}

// GetPluginBySecret returns the first record matching an upload secret.
// Secrets are expected unique, but uniqueness is not enforced at write
// time; first match preserves the historical behavior.
func (s *Store) GetPluginBySecret(ctx context.Context, secret string) (*registry.Plugin, error) {
	ctx, span := tracer.Start(ctx, "Store.GetPluginBySecret")
	defer span.End()

	query := `SELECT ` + pluginColumns + `
		FROM plugins WHERE secret = $1 ORDER BY id LIMIT 1`

	p, err := scanPlugin(s.db.QueryRowContext(ctx, query, secret))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to get plugin by secret: %w", err)
	}
	return p, nil
}

// ListPluginsByCategory returns approved plugins holding a category.
func (s *Store) ListPluginsByCategory(ctx context.Context, category string) ([]*registry.Plugin, error) {
	ctx, span := tracer.Start(ctx, "Store.ListPluginsByCategory",
		trace.WithAttributes(attribute.String("plugin.category", category)),
	)
	defer span.End()

	query := `SELECT ` + pluginColumns + `
		FROM plugins WHERE approved AND $1 = ANY(categories) ORDER BY name`

	return s.queryPlugins(ctx, span, query, category)
}

// ListApprovedPlugins returns every approved plugin record.
func (s *Store) ListApprovedPlugins(ctx context.Context) ([]*registry.Plugin, error) {
	ctx, span := tracer.Start(ctx, "Store.ListApprovedPlugins")
	defer span.End()

	query := `SELECT ` + pluginColumns + ` FROM plugins WHERE approved ORDER BY name`

	return s.queryPlugins(ctx, span, query)
}

func (s *Store) queryPlugins(ctx context.Context, span trace.Span, query string, args ...interface{}) ([]*registry.Plugin, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}
	defer rows.Close()

	var plugins []*registry.Plugin
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}
		plugins = append(plugins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plugins: %w", err)
	}

	span.SetAttributes(attribute.Int("plugin.count", len(plugins)))
	return plugins, nil
}

// SetApproved flips the approved flag. Disabling a record also zeroes its
// download counter; the count has already been transferred to the
// superseding record by then.
func (s *Store) SetApproved(ctx context.Context, id int64, approved bool) error {
	ctx, span := tracer.Start(ctx, "Store.SetApproved",
		trace.WithAttributes(
			attribute.Int64("plugin.id", id),
			attribute.Bool("plugin.approved", approved),
		),
	)
	defer span.End()

	var query string
	if approved {
		query = `UPDATE plugins SET approved = TRUE, updated_at = NOW() WHERE id = $1`
	} else {
		query = `UPDATE plugins SET approved = FALSE, downloads = 0, updated_at = NOW() WHERE id = $1`
	}

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("failed to set approval: %w", err)
	}
	return nil
}

// IncrementDownloads bumps the download counter on the approved record for
// a name.
func (s *Store) IncrementDownloads(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Store.IncrementDownloads",
		trace.WithAttributes(attribute.String("plugin.name", name)),
	)
	defer span.End()

	query := `UPDATE plugins SET downloads = downloads + 1 WHERE name = $1 AND approved`

	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}
