package directory

import (
	"context"
	"sync"

	"github.com/flashlightplugins/registry/pkg/registry"
)

type fakeStore struct {
	mu       sync.Mutex
	plugins  []*registry.Plugin
	listErr  error
	installs map[string]int
}

func newFakeStore(plugins ...*registry.Plugin) *fakeStore {
	return &fakeStore{plugins: plugins, installs: map[string]int{}}
}

func (s *fakeStore) CreatePlugin(ctx context.Context, p *registry.Plugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins = append(s.plugins, p)
	return nil
}

func (s *fakeStore) UpdatePlugin(ctx context.Context, p *registry.Plugin) error { return nil }

func (s *fakeStore) GetPluginByName(ctx context.Context, name string) (*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plugins {
		if p.Name == name && p.Approved {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetPluginBySecret(ctx context.Context, secret string) (*registry.Plugin, error) {
	return nil, nil
}

func (s *fakeStore) ListPluginsByCategory(ctx context.Context, category string) ([]*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*registry.Plugin
	for _, p := range s.plugins {
		if !p.Approved {
			continue
		}
		for _, c := range p.Categories {
			if c == category {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListApprovedPlugins(ctx context.Context) ([]*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*registry.Plugin
	for _, p := range s.plugins {
		if p.Approved {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) SetApproved(ctx context.Context, id int64, approved bool) error { return nil }

func (s *fakeStore) IncrementDownloads(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installs[name]++
	return nil
}

type fakeSearcher struct {
	results []*registry.Plugin
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]*registry.Plugin, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}
