// Package search answers directory search queries against PostgreSQL.
package search

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flashlightplugins/registry/pkg/registry"
)

var tracer = otel.Tracer("registry/search")

const maxResults = 100

// Searcher finds approved plugins whose name or metadata matches a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]*registry.Plugin, error)
}

// SQLSearcher runs case-insensitive substring matches over the plugins
// table. Name matches rank ahead of metadata-only matches, then by
// install count.
type SQLSearcher struct {
	db *sql.DB
}

func NewSQLSearcher(db *sql.DB) *SQLSearcher {
	return &SQLSearcher{db: db}
}

func (s *SQLSearcher) Search(ctx context.Context, query string) ([]*registry.Plugin, error) {
	ctx, span := tracer.Start(ctx, "search.plugins")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, info_json, categories, icon_url, screenshot_url,
			zip_url, zip_md5, secret, notes, downloads, approved,
			created_at, updated_at
		FROM plugins
		WHERE approved AND (name ILIKE $1 OR info_json ILIKE $1)
		ORDER BY (name ILIKE $1) DESC, downloads DESC, name
		LIMIT $2`, pattern, maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching plugins: %w", err)
	}
	defer rows.Close()

	var plugins []*registry.Plugin
	for rows.Next() {
		p := &registry.Plugin{}
		if err := rows.Scan(
			&p.ID, &p.Name, &p.InfoJSON, pq.Array(&p.Categories),
			&p.IconURL, &p.ScreenshotURL, &p.ZipURL, &p.ZipMD5,
			&p.Secret, &p.Notes, &p.Downloads, &p.Approved,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		plugins = append(plugins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	span.SetAttributes(attribute.Int("search.results", len(plugins)))
	return plugins, nil
}
