package redis

import (
	"context"
	"testing"
	"time"

	"github.com/openmesh/meshgate/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestStore_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewStore(client, "speccache:")
	ctx := context.Background()

	err := store.Set(ctx, "svc-a:/openapi.json", []byte(`{"openapi":"3.0.0"}`), 30*time.Minute)
	require.NoError(t, err)

	got, err := store.Get(ctx, "svc-a:/openapi.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"openapi":"3.0.0"}`, string(got))
}

func TestStore_GetNonExistent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewStore(client, "speccache:")
	_, err := store.Get(context.Background(), "missing")
	assert.Equal(t, ErrNotFound, err)
}

func TestStore_Expires(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewStore(client, "speccache:")
	ctx := context.Background()

	err := store.Set(ctx, "expiring", []byte("value"), 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = store.Get(ctx, "expiring")
	assert.Equal(t, ErrNotFound, err)
}

func TestStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewStore(client, "speccache:")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "to-delete", []byte("value"), time.Minute))
	require.NoError(t, store.Delete(ctx, "to-delete"))

	_, err := store.Get(ctx, "to-delete")
	assert.Equal(t, ErrNotFound, err)
}
