package registry

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
)

// Target edge sizes for published plugin images.
const (
	IconSize       = 128
	ScreenshotSize = 800
)

// AssetPublisher resizes plugin images and persists them in the blob store.
type AssetPublisher struct {
	blobs    BlobStore
	serveURL func(key string) string
}

// NewAssetPublisher creates an asset publisher. serveURL maps a blob-store
// key to the public URL the stored asset will be served from.
func NewAssetPublisher(blobs BlobStore, serveURL func(key string) string) *AssetPublisher {
	return &AssetPublisher{
		blobs:    blobs,
		serveURL: serveURL,
	}
}

// Publish resizes an image to size×size, re-encodes it as PNG and writes it
// to the blob store, returning the durable URL it will be served from.
// Store failures are fatal to the surrounding upload.
func (p *AssetPublisher) Publish(ctx context.Context, imageData []byte, size int) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("%w: undecodable image: %v", ErrInvalidMetadata, err)
	}

	resized := imaging.Resize(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode resized image: %w", err)
	}

	key, err := p.blobs.Put(ctx, buf.Bytes(), "image/png")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssetStore, err)
	}

	return p.serveURL(key), nil
}
