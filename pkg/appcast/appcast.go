// Package appcast resolves the latest app download URL from a Sparkle
// appcast feed. The resolved URL is cached in Redis so the feed host is
// polled at most once per cache window.
package appcast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flashlightplugins/registry/pkg/storage"
	"github.com/flashlightplugins/registry/pkg/storage/postgres"
)

const cacheKey = "latest_download_url"

// feed models the slice of a Sparkle appcast we care about: the enclosure
// of each item carries the downloadable artifact URL.
type feed struct {
	Channel struct {
		Items []struct {
			Enclosure struct {
				URL string `xml:"url,attr"`
			} `xml:"enclosure"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Resolver fetches and caches the newest enclosure URL from an appcast.
type Resolver struct {
	feedURL string
	client  *http.Client
	redis   *postgres.RedisClient
	log     *logrus.Logger
}

func NewResolver(feedURL string, redis *postgres.RedisClient, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{
		feedURL: feedURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		redis:   redis,
		log:     log,
	}
}

// LatestDownloadURL returns the enclosure URL of the first feed item,
// serving from cache when possible.
func (r *Resolver) LatestDownloadURL(ctx context.Context) (string, error) {
	if r.redis != nil {
		cached, ok, err := r.redis.GetString(ctx, cacheKey)
		if err != nil {
			r.log.WithError(err).Warn("Download URL cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	downloadURL, err := r.fetch(ctx)
	if err != nil {
		return "", err
	}

	if r.redis != nil {
		if err := r.redis.SetString(ctx, cacheKey, downloadURL, storage.TTLDownloadURL); err != nil {
			r.log.WithError(err).Warn("Download URL cache write failed")
		}
	}
	return downloadURL, nil
}

func (r *Resolver) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("building appcast request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching appcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching appcast: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading appcast: %w", err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return "", fmt.Errorf("parsing appcast: %w", err)
	}

	for _, item := range f.Channel.Items {
		if item.Enclosure.URL != "" {
			return item.Enclosure.URL, nil
		}
	}
	return "", fmt.Errorf("appcast has no enclosure URL")
}
