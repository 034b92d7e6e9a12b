package registry

import (
	"context"
	"io"
	"time"
)

// Plugin represents a single uploaded plugin record. Superseded records are
// kept with Approved=false rather than deleted, so one name can have several
// historical rows but at most one approved row.
type Plugin struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	InfoJSON      string    `json:"info_json"`
	Categories    []string  `json:"categories"`
	IconURL       string    `json:"icon_url,omitempty"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
	ZipURL        string    `json:"zip_url"`
	ZipMD5        string    `json:"zip_md5"`
	Secret        string    `json:"-"`
	Notes         string    `json:"notes,omitempty"`
	Downloads     int64     `json:"downloads"`
	Approved      bool      `json:"approved"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PluginStore persists plugin records.
type PluginStore interface {
	CreatePlugin(ctx context.Context, plugin *Plugin) error
	UpdatePlugin(ctx context.Context, plugin *Plugin) error
	// GetPluginByName returns the approved record for a name, or nil when
	// no approved record exists.
	GetPluginByName(ctx context.Context, name string) (*Plugin, error)
	// GetPluginBySecret returns the first record matching an upload secret,
	// or nil when none matches.
	GetPluginBySecret(ctx context.Context, secret string) (*Plugin, error)
	ListPluginsByCategory(ctx context.Context, category string) ([]*Plugin, error)
	ListApprovedPlugins(ctx context.Context) ([]*Plugin, error)
	// SetApproved flips the approved flag on a record. Disabling also
	// zeroes the download counter.
	SetApproved(ctx context.Context, id int64, approved bool) error
	IncrementDownloads(ctx context.Context, name string) error
}

// BlobStore stores opaque binary content and hands back a stable key that
// can later be resolved to the content.
type BlobStore interface {
	Put(ctx context.Context, content []byte, contentType string) (key string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Fetcher retrieves the raw bytes behind a URL. Uploads hand the service a
// blob-store URL for the zip; the service reads it back through this.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// KeyChecker reports whether a console key is currently valid.
type KeyChecker interface {
	Valid(ctx context.Context, key string) bool
}
