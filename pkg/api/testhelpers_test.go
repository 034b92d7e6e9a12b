package api

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/flashlightplugins/registry/pkg/consolekey"
	"github.com/flashlightplugins/registry/pkg/directory"
	"github.com/flashlightplugins/registry/pkg/middleware"
	"github.com/flashlightplugins/registry/pkg/observability"
	"github.com/flashlightplugins/registry/pkg/registry"
	"github.com/flashlightplugins/registry/pkg/storage"
	"github.com/flashlightplugins/registry/pkg/storage/postgres"
)

// memStore is an in-memory PluginStore for handler tests.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]*registry.Plugin
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]*registry.Plugin)}
}

func clonePlugin(p *registry.Plugin) *registry.Plugin {
	c := *p
	c.Categories = append([]string(nil), p.Categories...)
	return &c
}

func (s *memStore) CreatePlugin(_ context.Context, plugin *registry.Plugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	plugin.ID = s.seq
	s.records[plugin.ID] = clonePlugin(plugin)
	return nil
}

func (s *memStore) UpdatePlugin(_ context.Context, plugin *registry.Plugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[plugin.ID]; !ok {
		return fmt.Errorf("no record %d", plugin.ID)
	}
	s.records[plugin.ID] = clonePlugin(plugin)
	return nil
}

func (s *memStore) GetPluginByName(_ context.Context, name string) (*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.records {
		if p.Name == name && p.Approved {
			return clonePlugin(p), nil
		}
	}
	return nil, nil
}

func (s *memStore) GetPluginBySecret(_ context.Context, secret string) (*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.records {
		if p.Secret == secret {
			return clonePlugin(p), nil
		}
	}
	return nil, nil
}

func (s *memStore) ListPluginsByCategory(_ context.Context, category string) ([]*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*registry.Plugin
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

func (s *memStore) ListApprovedPlugins(_ context.Context) ([]*registry.Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*registry.Plugin
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

func (s *memStore) add(p *registry.Plugin) *registry.Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p.ID = s.seq
	s.records[p.ID] = clonePlugin(p)
	return p
}

// memBlobStore keeps blobs in a map.
type memBlobStore struct {
	mu    sync.Mutex
	seq   int
	blobs map[string][]byte
	types map[string]string
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

// staticKeys validates exactly one console key.
type staticKeys struct {
	key string
}

func (k *staticKeys) Valid(_ context.Context, key string) bool {
	return k.key != "" && key == k.key
}

type fakeSearcher struct {
	results []*registry.Plugin
}

func (f *fakeSearcher) Search(context.Context, string) ([]*registry.Plugin, error) {
	return f.results, nil
}

const testBaseURL = "http://registry.test"

type testEnv struct {
	server  *Server
	store   *memStore
	blobs   *memBlobStore
	metrics *observability.Metrics
	ts      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := newMemStore()
	blobs := newMemBlobStore()
	keys := &staticKeys{key: "valid-console-key"}

	assets := registry.NewAssetPublisher(blobs, func(key string) string {
		return testBaseURL + "/serve/" + key
	})
	uploads := registry.NewUploader(store, &blobFetcher{blobs: blobs}, assets, keys, log)
	dir := directory.NewService(store, &fakeSearcher{}, nil, storage.DefaultConfig(), log)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisConfig := storage.DefaultConfig()
	redisConfig.RedisURL = "redis://" + mr.Addr()
	redisClient, err := postgres.NewRedisClient(redisConfig)
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	dir.Instrument(metrics)

	server := NewServer(Options{
		Uploads:       uploads,
		Store:         store,
		Directory:     dir,
		Blobs:         blobs,
		ConsoleKeys:   consolekey.NewIssuer(redisClient, log),
		AdminAuth:     middleware.NewAdminAuth([]string{"admin-token"}),
		Metrics:       metrics,
		Registry:      promRegistry,
		Log:           log,
		PublicBaseURL: testBaseURL,
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: server, store: store, blobs: blobs, metrics: metrics, ts: ts}
}

// blobFetcher resolves serve URLs back to blob contents, standing in for
// the HTTP fetcher in tests.
type blobFetcher struct {
	blobs *memBlobStore
}

func (f *blobFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	const prefix = testBaseURL + "/serve/"
	if len(url) <= len(prefix) || url[:len(prefix)] != prefix {
		return nil, registry.ErrFetchFailed
	}
	rc, _, err := f.blobs.Get(ctx, url[len(prefix):])
	if err != nil {
		return nil, registry.ErrFetchFailed
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 77, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func pluginZip(t *testing.T, name string) []byte {
	t.Helper()
	info := fmt.Sprintf(`{"name":%q,"categories":["Utilities"],"displayName":"%s"}`, name, name)
	return buildZip(t, map[string][]byte{
		name + "/info.json":      []byte(info),
		name + "/Icon.png":       makePNG(t, 64, 64),
		name + "/Screenshot.png": makePNG(t, 200, 120),
	})
}
