package registry

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// secretLength is the number of random bytes behind an upload secret. The
// base64 encoding of it is what callers store and present on re-upload.
const secretLength = 128

// UploadRequest carries one plugin submission through the pipeline.
type UploadRequest struct {
	// ZipURL is the blob-store URL the archive was uploaded to.
	ZipURL string
	// ZipData holds the archive bytes when the caller already has them;
	// when nil they are fetched from ZipURL.
	ZipData []byte
	// Secret, when non-empty, authorizes an update of the record it matches.
	Secret string
	// ConsoleKey, when valid, grants the same privileges as an admin user.
	ConsoleKey string
	// AdminUser is true when the identity provider recognized the caller
	// as an administrator.
	AdminUser bool
	Notes     string
}

// UploadResult describes a successful submission.
type UploadResult struct {
	Plugin *Plugin
	// IsUpdate is true when the submission replaced a record matched by
	// its secret rather than creating a new one.
	IsUpdate bool
	// Admin is true when the upload was admin-authorized and therefore
	// auto-enabled.
	Admin bool
	// ZipSize is the archive size in bytes, whichever way it arrived.
	ZipSize int64
}

// Uploader owns create/update/replace semantics for plugin records.
type Uploader struct {
	store   PluginStore
	fetcher Fetcher
	assets  *AssetPublisher
	keys    KeyChecker
	log     *logrus.Logger

	// nameLocks serializes the name-collision replace sequence so two
	// racing admin uploads for one name cannot double-transfer downloads.
	nameLocks sync.Map // string -> *sync.Mutex
}

// NewUploader creates an upload service.
func NewUploader(store PluginStore, fetcher Fetcher, assets *AssetPublisher, keys KeyChecker, log *logrus.Logger) *Uploader {
	if log == nil {
		log = logrus.New()
	}
	return &Uploader{
		store:   store,
		fetcher: fetcher,
		assets:  assets,
		keys:    keys,
		log:     log,
	}
}

// SubmitUpload runs one plugin submission end to end: resolve the target
// record (by secret, or a fresh one), read the archive, publish its images,
// fingerprint the zip, rotate the secret, then persist. Admin-authorized
// uploads that collide on name with an existing approved record absorb its
// download count and disable it; only admin-authorized uploads come out
// approved.
func (u *Uploader) SubmitUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	log := u.log.WithField("upload_id", uuid.NewString())

	plugin := &Plugin{}
	isUpdate := false
	if req.Secret != "" {
		existing, err := u.store.GetPluginBySecret(ctx, req.Secret)
		if err != nil {
			return nil, fmt.Errorf("secret lookup failed: %w", err)
		}
		if existing == nil {
			return nil, ErrSecretNotFound
		}
		plugin = existing
		isUpdate = true
	}

	zipData := req.ZipData
	if zipData == nil {
		var err error
		zipData, err = u.fetcher.Fetch(ctx, req.ZipURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
	}

	contents, found, err := InspectArchive(zipData)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrMissingInfoJSON
	}

	infoJSON, err := contents.Manifest.Encode()
	if err != nil {
		return nil, err
	}
	plugin.Name = contents.Manifest.Name
	plugin.InfoJSON = infoJSON
	plugin.Categories = contents.Manifest.Categories
	plugin.ZipURL = req.ZipURL
	plugin.Notes = req.Notes

	if contents.Icon != nil {
		if plugin.IconURL, err = u.assets.Publish(ctx, contents.Icon, IconSize); err != nil {
			return nil, err
		}
	}
	if contents.Screenshot != nil {
		if plugin.ScreenshotURL, err = u.assets.Publish(ctx, contents.Screenshot, ScreenshotSize); err != nil {
			return nil, err
		}
	}

	sum := md5.Sum(zipData)
	plugin.ZipMD5 = hex.EncodeToString(sum[:])

	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	// Rotated on every successful upload, updates included. The old secret
	// stops working; the caller must retain the returned one.
	plugin.Secret = secret

	admin := req.AdminUser || (req.ConsoleKey != "" && u.keys.Valid(ctx, req.ConsoleKey))

	unlock := u.lockName(plugin.Name)
	defer unlock()

	if admin {
		existing, err := u.store.GetPluginByName(ctx, plugin.Name)
		if err != nil {
			return nil, fmt.Errorf("name lookup failed: %w", err)
		}
		if existing != nil && existing.ID != plugin.ID {
			plugin.Downloads += existing.Downloads
			if err := u.persist(ctx, plugin); err != nil {
				return nil, err
			}
			if err := u.store.SetApproved(ctx, existing.ID, false); err != nil {
				return nil, fmt.Errorf("failed to disable superseded record: %w", err)
			}
			log.WithFields(logrus.Fields{
				"name":                plugin.Name,
				"carryover_downloads": existing.Downloads,
			}).Info("Superseded existing plugin record")
		}
	}

	if err := u.persist(ctx, plugin); err != nil {
		return nil, err
	}
	// The record is durable at this point. Enabling is a separate mutation
	// so an interrupted upload leaves a pending record, never a lost one.
	if admin {
		if err := u.store.SetApproved(ctx, plugin.ID, true); err != nil {
			return nil, fmt.Errorf("failed to enable plugin: %w", err)
		}
		plugin.Approved = true
	}

	log.WithFields(logrus.Fields{
		"name":   plugin.Name,
		"update": isUpdate,
		"admin":  admin,
	}).Info("Plugin upload accepted")

	return &UploadResult{Plugin: plugin, IsUpdate: isUpdate, Admin: admin, ZipSize: int64(len(zipData))}, nil
}

func (u *Uploader) persist(ctx context.Context, plugin *Plugin) error {
	if plugin.ID == 0 {
		if err := u.store.CreatePlugin(ctx, plugin); err != nil {
			return fmt.Errorf("failed to create plugin record: %w", err)
		}
		return nil
	}
	if err := u.store.UpdatePlugin(ctx, plugin); err != nil {
		return fmt.Errorf("failed to update plugin record: %w", err)
	}
	return nil
}

func (u *Uploader) lockName(name string) func() {
	v, _ := u.nameLocks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func newSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
