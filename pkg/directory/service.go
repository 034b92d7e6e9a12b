// Package directory assembles the browsable plugin listings: category pages,
// search results, single-plugin lookups, and the category index, all
// localized to the caller's requested languages.
package directory

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/flashlightplugins/registry/pkg/locale"
	"github.com/flashlightplugins/registry/pkg/observability"
	"github.com/flashlightplugins/registry/pkg/registry"
	"github.com/flashlightplugins/registry/pkg/search"
	"github.com/flashlightplugins/registry/pkg/storage"
	"github.com/flashlightplugins/registry/pkg/storage/postgres"
)

const byNameCacheSize = 512

// Request selects what the directory shows. Exactly one of Category,
// Search, or Name should be set; anything else yields an empty listing.
type Request struct {
	Category string
	Search   string
	Name     string

	// Languages the caller asked for, already including the implicit "en".
	// Explicit records whether the caller passed any at all; grouping by
	// region only happens for explicit requests.
	Languages []string
	Explicit  bool
}

// Service owns read-side directory queries.
type Service struct {
	store    registry.PluginStore
	searcher search.Searcher
	redis    *postgres.RedisClient
	config   storage.Config
	metrics  *observability.Metrics
	log      *logrus.Logger

	byName  *expirable.LRU[string, *registry.Plugin]
	group   singleflight.Group
	nowFunc func() time.Time
}

// NewService creates the directory service. Cache lifetimes come from the
// config's TTL map so tests can shrink them.
func NewService(store registry.PluginStore, searcher search.Searcher, redis *postgres.RedisClient, config storage.Config, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		store:    store,
		searcher: searcher,
		redis:    redis,
		config:   config,
		log:      log,
		byName:   expirable.NewLRU[string, *registry.Plugin](byNameCacheSize, nil, config.TTL(storage.TTLPlugin)),
		nowFunc:  time.Now,
	}
}

// Instrument attaches cache and plugin-count metrics to the service.
func (s *Service) Instrument(m *observability.Metrics) {
	s.metrics = m
}

// Listing returns the grouped, localized plugin dicts for a request.
func (s *Service) Listing(ctx context.Context, req Request) ([]locale.Group, error) {
	plugins, err := s.selectPlugins(ctx, req)
	if err != nil {
		return nil, err
	}

	dicts := make([]map[string]interface{}, 0, len(plugins))
	for _, p := range plugins {
		dict, err := InfoDict(p, req.Languages)
		if err != nil {
			s.log.WithError(err).WithField("plugin", p.Name).Warn("Skipping plugin with unreadable metadata")
			continue
		}
		dicts = append(dicts, dict)
	}

	return locale.GroupPlugins(dicts, req.Languages, req.Explicit), nil
}

// PluginInfo returns the localized dict for a single approved plugin, or
// nil when no such plugin exists.
func (s *Service) PluginInfo(ctx context.Context, name string, languages []string) (map[string]interface{}, error) {
	p, err := s.pluginByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return InfoDict(p, languages)
}

// LogInstall bumps the install counter for an approved plugin. Unknown
// names are a no-op.
func (s *Service) LogInstall(ctx context.Context, name string) error {
	if err := s.store.IncrementDownloads(ctx, name); err != nil {
		return fmt.Errorf("logging install for %q: %w", name, err)
	}
	return nil
}

func (s *Service) selectPlugins(ctx context.Context, req Request) ([]*registry.Plugin, error) {
	switch {
	case req.Category != "":
		plugins, err := s.store.ListPluginsByCategory(ctx, req.Category)
		if err != nil {
			return nil, fmt.Errorf("listing category %q: %w", req.Category, err)
		}
		stableDailyShuffle(plugins, s.nowFunc().UTC().Format("2006-01-02"))
		return plugins, nil
	case req.Search != "":
		plugins, err := s.searcher.Search(ctx, req.Search)
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", req.Search, err)
		}
		return plugins, nil
	case req.Name != "":
		p, err := s.pluginByName(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, nil
		}
		return []*registry.Plugin{p}, nil
	default:
		return nil, nil
	}
}

func (s *Service) pluginByName(ctx context.Context, name string) (*registry.Plugin, error) {
	if p, ok := s.byName.Get(name); ok {
		s.countCache(pluginCacheName, true)
		return p, nil
	}
	s.countCache(pluginCacheName, false)
	p, err := s.store.GetPluginByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up plugin %q: %w", name, err)
	}
	if p != nil {
		s.byName.Add(name, p)
	}
	return p, nil
}

const pluginCacheName = "plugin_by_name"

func (s *Service) countCache(cache string, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// InstallURL builds the deep link the app opens to install a plugin.
func InstallURL(p *registry.Plugin) string {
	values := url.Values{}
	values.Set("zip_url", p.ZipURL)
	values.Set("name", p.Name)
	return "install://_?" + values.Encode()
}
