package directory

import (
	"context"
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"github.com/flashlightplugins/registry/pkg/storage"
)

const categoriesCacheKey = "categories"

// Categories returns the sorted distinct categories across approved
// plugins. Results come from Redis when fresh; recomputes for a cold or
// expired cache are collapsed so a stampede performs one table scan.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if s.redis != nil {
		var cached []string
		ok, err := s.redis.GetJSON(ctx, categoriesCacheKey, &cached)
		if err != nil {
			s.log.WithError(err).Warn("Categories cache read failed")
		} else if ok {
			s.countCache(categoriesCacheKey, true)
			return cached, nil
		}
		s.countCache(categoriesCacheKey, false)
	}

	result, err, _ := s.group.Do(categoriesCacheKey, func() (interface{}, error) {
		return s.computeCategories(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// BrowseCategories returns the category index with "Featured" forced to
// the front whether or not any plugin carries it.
func (s *Service) BrowseCategories(ctx context.Context) ([]string, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	ordered := make([]string, 0, len(categories)+1)
	ordered = append(ordered, "Featured")
	for _, c := range categories {
		if c != "Featured" {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// RefreshCategories recomputes the category cache immediately, bypassing
// whatever Redis currently holds. Called after uploads that change the set
// of approved plugins so the index does not stay stale for a full TTL.
func (s *Service) RefreshCategories(ctx context.Context) error {
	_, err := s.computeCategories(ctx)
	return err
}

func (s *Service) computeCategories(ctx context.Context) ([]string, error) {
	plugins, err := s.store.ListApprovedPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing categories: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PluginsApproved.Set(float64(len(plugins)))
	}

	seen := map[string]bool{}
	for _, p := range plugins {
		for _, c := range p.Categories {
			seen[c] = true
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	if s.redis != nil {
		if err := s.redis.SetJSON(ctx, categoriesCacheKey, categories, storage.TTLCategories); err != nil {
			s.log.WithError(err).Warn("Categories cache write failed")
		}
	}
	return categories, nil
}

// StartCategoryWarmer recomputes the category cache on a fixed schedule so
// most requests never pay for the scan. The returned cron is already
// started; callers stop it on shutdown.
func (s *Service) StartCategoryWarmer(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.PostgresTimeout)
		defer cancel()
		if _, err := s.computeCategories(ctx); err != nil {
			s.log.WithError(err).Warn("Category cache warm failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling category warmer: %w", err)
	}
	c.Start()
	return c, nil
}
