package consolekey

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashlightplugins/registry/pkg/storage"
	"github.com/flashlightplugins/registry/pkg/storage/postgres"
)

func setupIssuerTest(t *testing.T) (*Issuer, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := storage.DefaultConfig()
	config.RedisURL = "redis://" + mr.Addr()
	config.CacheTTL[storage.TTLConsoleKey] = time.Hour

	client, err := postgres.NewRedisClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewIssuer(client, nil), mr
}

func TestIssueAndValidate(t *testing.T) {
	issuer, _ := setupIssuerTest(t)
	ctx := context.Background()

	key, err := issuer.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	raw, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	assert.True(t, issuer.Valid(ctx, key))
}

func TestValidate_UnknownKey(t *testing.T) {
	issuer, _ := setupIssuerTest(t)

	assert.False(t, issuer.Valid(context.Background(), "never-issued"))
	assert.False(t, issuer.Valid(context.Background(), ""))
}

func TestValidate_ExpiredKey(t *testing.T) {
	issuer, mr := setupIssuerTest(t)
	ctx := context.Background()

	key, err := issuer.Issue(ctx)
	require.NoError(t, err)
	require.True(t, issuer.Valid(ctx, key))

	mr.FastForward(2 * time.Hour)

	assert.False(t, issuer.Valid(ctx, key))
}

func TestIssue_KeysAreIndependent(t *testing.T) {
	issuer, _ := setupIssuerTest(t)
	ctx := context.Background()

	first, err := issuer.Issue(ctx)
	require.NoError(t, err)
	second, err := issuer.Issue(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, issuer.Valid(ctx, first))
	assert.True(t, issuer.Valid(ctx, second))
}
