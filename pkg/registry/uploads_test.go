package registry

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServeURL(key string) string {
	return "http://registry.test/serve/" + key
}

func newTestUploader(store PluginStore, fetcher Fetcher, keys KeyChecker) *Uploader {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	assets := NewAssetPublisher(newMemBlobStore(), testServeURL)
	return NewUploader(store, fetcher, assets, keys, log)
}

func infoZip(t *testing.T, name string) []byte {
	t.Helper()
	return buildZip(t, map[string][]byte{
		"Plugin.bundle/info.json": []byte(fmt.Sprintf(`{"name":%q,"categories":["Utilities"]}`, name)),
	})
}

func TestSubmitUpload_NewPlugin(t *testing.T) {
	store := newMemStore()
	zipData := infoZip(t, "Clock")
	uploader := newTestUploader(store, &staticFetcher{data: zipData}, &staticKeys{})

	result, err := uploader.SubmitUpload(context.Background(), UploadRequest{
		ZipURL: "http://registry.test/serve/zip-1",
		Notes:  "first release",
	})
	require.NoError(t, err)

	assert.False(t, result.IsUpdate)
	assert.False(t, result.Admin)

	p := result.Plugin
	assert.Equal(t, "Clock", p.Name)
	assert.Equal(t, []string{"Utilities"}, p.Categories)
	assert.Equal(t, "first release", p.Notes)
	assert.False(t, p.Approved, "non-admin uploads stay pending approval")
	assert.NotEmpty(t, p.Secret)

	sum := md5.Sum(zipData)
	assert.Equal(t, hex.EncodeToString(sum[:]), p.ZipMD5)
}

func TestSubmitUpload_PublishesImages(t *testing.T) {
	store := newMemStore()
	zipData := buildZip(t, map[string][]byte{
		"Clock.bundle/info.json":      []byte(`{"name":"Clock"}`),
		"Clock.bundle/Icon.png":       makePNG(t, 512, 512),
		"Clock.bundle/Screenshot.png": makePNG(t, 1200, 900),
	})
	uploader := newTestUploader(store, &staticFetcher{data: zipData}, &staticKeys{})

	result, err := uploader.SubmitUpload(context.Background(), UploadRequest{ZipURL: "u"})
	require.NoError(t, err)

	assert.Contains(t, result.Plugin.IconURL, "/serve/")
	assert.Contains(t, result.Plugin.ScreenshotURL, "/serve/")
	assert.NotEqual(t, result.Plugin.IconURL, result.Plugin.ScreenshotURL)
}

func TestSubmitUpload_AssetStoreFailure(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlobStore()
	blobs.fail = true
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	uploader := NewUploader(store, &staticFetcher{data: buildZip(t, map[string][]byte{
		"Clock.bundle/info.json": []byte(`{"name":"Clock"}`),
		"Clock.bundle/Icon.png":  makePNG(t, 16, 16),
	})}, NewAssetPublisher(blobs, testServeURL), &staticKeys{}, log)

	_, err := uploader.SubmitUpload(context.Background(), UploadRequest{ZipURL: "u"})
	assert.ErrorIs(t, err, ErrAssetStore)
	assert.Empty(t, store.snapshot(), "no partial record persisted")
}

func TestSubmitUpload_FetchFailure(t *testing.T) {
	store := newMemStore()
	uploader := newTestUploader(store, &staticFetcher{err: fmt.Errorf("unreachable")}, &staticKeys{})

	_, err := uploader.SubmitUpload(context.Background(), UploadRequest{ZipURL: "u"})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, store.snapshot())
}

func TestSubmitUpload_MissingInfoJSON(t *testing.T) {
	store := newMemStore()
	zipData := buildZip(t, map[string][]byte{"readme.txt": []byte("hi")})
	uploader := newTestUploader(store, &staticFetcher{data: zipData}, &staticKeys{})

	_, err := uploader.SubmitUpload(context.Background(), UploadRequest{ZipURL: "u"})
	assert.ErrorIs(t, err, ErrMissingInfoJSON)
	assert.Empty(t, store.snapshot())
}

func TestSubmitUpload_SecretNotFound(t *testing.T) {
	store := newMemStore()
	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{})

	_, err := uploader.SubmitUpload(context.Background(), UploadRequest{
		ZipURL: "u",
		Secret: "no-such-secret",
	})
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestSubmitUpload_SecretRotatesOnUpdate(t *testing.T) {
	store := newMemStore()
	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{})
	ctx := context.Background()

	first, err := uploader.SubmitUpload(ctx, UploadRequest{ZipURL: "u"})
	require.NoError(t, err)
	oldSecret := first.Plugin.Secret

	second, err := uploader.SubmitUpload(ctx, UploadRequest{ZipURL: "u", Secret: oldSecret})
	require.NoError(t, err)
	assert.True(t, second.IsUpdate)
	assert.Equal(t, first.Plugin.ID, second.Plugin.ID)
	assert.NotEqual(t, oldSecret, second.Plugin.Secret)

	// The rotated-out secret no longer authorizes an update.
	_, err = uploader.SubmitUpload(ctx, UploadRequest{ZipURL: "u", Secret: oldSecret})
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestSubmitUpload_AdminReplaceCarriesDownloads(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	existing := &Plugin{
		Name:      "Clock",
		Downloads: 50,
		Approved:  true,
		Secret:    "legacy",
	}
	require.NoError(t, store.CreatePlugin(ctx, existing))

	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{})
	result, err := uploader.SubmitUpload(ctx, UploadRequest{ZipURL: "u", AdminUser: true})
	require.NoError(t, err)

	assert.True(t, result.Admin)
	assert.True(t, result.Plugin.Approved, "admin uploads are auto-enabled")
	assert.GreaterOrEqual(t, result.Plugin.Downloads, int64(50), "download count carried over")

	old := store.snapshot()[existing.ID]
	require.NotNil(t, old)
	assert.False(t, old.Approved, "superseded record disabled")
	assert.Zero(t, old.Downloads, "superseded record's counter zeroed")
}

func TestSubmitUpload_ConsoleKeyGrantsAdmin(t *testing.T) {
	store := newMemStore()
	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{key: "valid-key"})

	result, err := uploader.SubmitUpload(context.Background(), UploadRequest{
		ZipURL:     "u",
		ConsoleKey: "valid-key",
	})
	require.NoError(t, err)
	assert.True(t, result.Admin)
	assert.True(t, result.Plugin.Approved)
}

func TestSubmitUpload_ExpiredConsoleKeyIsNotAdmin(t *testing.T) {
	store := newMemStore()
	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{key: "valid-key"})

	result, err := uploader.SubmitUpload(context.Background(), UploadRequest{
		ZipURL:     "u",
		ConsoleKey: "stale-key",
	})
	require.NoError(t, err)
	assert.False(t, result.Admin)
	assert.False(t, result.Plugin.Approved)
}

func TestSubmitUpload_NonAdminCollisionLeavesExistingAlone(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	existing := &Plugin{
		Name:      "Clock",
		Downloads: 50,
		Approved:  true,
	}
	require.NoError(t, store.CreatePlugin(ctx, existing))

	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{})
	result, err := uploader.SubmitUpload(ctx, UploadRequest{ZipURL: "u"})
	require.NoError(t, err)

	assert.False(t, result.Plugin.Approved)
	assert.Zero(t, result.Plugin.Downloads)

	old := store.snapshot()[existing.ID]
	require.NotNil(t, old)
	assert.True(t, old.Approved)
	assert.Equal(t, int64(50), old.Downloads)
}

func TestSubmitUpload_ConcurrentAdminReplaceNeverDoubleCounts(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	existing := &Plugin{
		Name:      "Clock",
		Downloads: 50,
		Approved:  true,
	}
	require.NoError(t, store.CreatePlugin(ctx, existing))

	uploader := newTestUploader(store, &staticFetcher{data: infoZip(t, "Clock")}, &staticKeys{})

	const racers = 8
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uploader.SubmitUpload(ctx, UploadRequest{ZipURL: "u", AdminUser: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var approvedCount int
	var total int64
	for _, p := range store.snapshot() {
		if p.Approved {
			approvedCount++
			total += p.Downloads
		}
	}
	assert.Equal(t, 1, approvedCount, "exactly one approved record per name")
	assert.Equal(t, int64(50), total, "downloads transferred exactly once")
}
