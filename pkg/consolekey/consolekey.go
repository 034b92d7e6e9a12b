// Package consolekey issues and validates short-lived keys that let the
// command line client act with admin rights. A key is minted for a signed-in
// admin, handed to the client once, and honored until its Redis entry
// expires.
package consolekey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flashlightplugins/registry/pkg/storage"
	"github.com/flashlightplugins/registry/pkg/storage/postgres"
)

const keyBytes = 64

// Issuer mints console keys and answers validity checks against Redis.
type Issuer struct {
	redis *postgres.RedisClient
	log   *logrus.Logger
}

func NewIssuer(redis *postgres.RedisClient, log *logrus.Logger) *Issuer {
	if log == nil {
		log = logrus.New()
	}
	return &Issuer{redis: redis, log: log}
}

// Issue mints a fresh key and stores it with the console-key TTL. Each call
// produces an independent key; issuing a new one does not revoke the old.
func (i *Issuer) Issue(ctx context.Context) (string, error) {
	raw := make([]byte, keyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating console key: %w", err)
	}
	key := base64.StdEncoding.EncodeToString(raw)

	if err := i.redis.SetString(ctx, redisKey(key), "1", storage.TTLConsoleKey); err != nil {
		return "", fmt.Errorf("storing console key: %w", err)
	}
	return key, nil
}

// Valid reports whether the key is known and unexpired. Redis trouble is
// logged and treated as invalid rather than granting admin on error.
func (i *Issuer) Valid(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	_, ok, err := i.redis.GetString(ctx, redisKey(key))
	if err != nil {
		i.log.WithError(err).Warn("Console key lookup failed")
		return false
	}
	return ok
}

func redisKey(key string) string {
	return "console_key:" + key
}
