package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// memStore is an in-memory PluginStore for upload pipeline tests.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]*Plugin
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]*Plugin)}
}

func clonePlugin(p *Plugin) *Plugin {
	c := *p
	c.Categories = append([]string(nil), p.Categories...)
	return &c
}

func (s *memStore) CreatePlugin(_ context.Context, plugin *Plugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	plugin.ID = s.seq
	s.records[plugin.ID] = clonePlugin(plugin)
	return nil
}

func (s *memStore) UpdatePlugin(_ context.Context, plugin *Plugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[plugin.ID]; !ok {
		return fmt.Errorf("no record %d", plugin.ID)
	}
	s.records[plugin.ID] = clonePlugin(plugin)
	return nil
}

func (s *memStore) GetPluginByName(_ context.Context, name string) (*Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Plugin
	for _, p := range s.records {
		if p.Name == name && p.Approved {
			if found == nil || p.ID > found.ID {
				found = p
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	return clonePlugin(found), nil
}

func (s *memStore) GetPluginBySecret(_ context.Context, secret string) (*Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.records {
		if p.Secret == secret {
			return clonePlugin(p), nil
		}
	}
	return nil, nil
}

func (s *memStore) ListPluginsByCategory(_ context.Context, category string) ([]*Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Plugin
	for _, p := range s.records {
		if !p.Approved {
			continue
		}
		for _, c := range p.Categories {
			if c == category {
				out = append(out, clonePlugin(p))
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) ListApprovedPlugins(_ context.Context) ([]*Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Plugin
	for _, p := range s.records {
		if p.Approved {
			out = append(out, clonePlugin(p))
		}
	}
	return out, nil
}

func (s *memStore) SetApproved(_ context.Context, id int64, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return fmt.Errorf("no record %d", id)
	}
	p.Approved = approved
	if !approved {
		p.Downloads = 0
	}
	return nil
}

func (s *memStore) IncrementDownloads(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.records {
		if p.Name == name && p.Approved {
			p.Downloads++
		}
	}
	return nil
}

// snapshot returns copies of every record, keyed by id.
func (s *memStore) snapshot() map[int64]*Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*Plugin, len(s.records))
	for id, p := range s.records {
		out[id] = clonePlugin(p)
	}
	return out
}

// memBlobStore keeps published blobs in a map.
type memBlobStore struct {
	mu    sync.Mutex
	seq   int
	blobs map[string][]byte
	types map[string]string
	fail  bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (s *memBlobStore) Put(_ context.Context, content []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", fmt.Errorf("blob store unavailable")
	}
	s.seq++
	key := fmt.Sprintf("blob-%d", s.seq)
	s.blobs[key] = append([]byte(nil), content...)
	s.types[key] = contentType
	return key, nil
}

func (s *memBlobStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.blobs[key]
	if !ok {
		return nil, "", fmt.Errorf("no blob %s", key)
	}
	return io.NopCloser(bytes.NewReader(content)), s.types[key], nil
}

// staticFetcher serves fixed bytes for any URL.
type staticFetcher struct {
	data []byte
	err  error
}

func (f *staticFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

// staticKeys validates exactly one console key.
type staticKeys struct {
	key string
}

func (k *staticKeys) Valid(_ context.Context, key string) bool {
	return k.key != "" && key == k.key
}
