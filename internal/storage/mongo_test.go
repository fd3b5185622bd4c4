package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T, maxBytes int) (*MongoStore, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongoStore(db, maxBytes)
	require.NoError(t, store.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return store, cleanup
}

func TestMongoStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	store, cleanup := setupTestMongo(t, 0)
	defer cleanup()

	ctx := context.Background()

	_, err := store.Get(ctx, "cart:s1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "cart:s1", "first"))
	require.NoError(t, store.Set(ctx, "cart:s1", "second"))

	v, err := store.Get(ctx, "cart:s1")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	require.NoError(t, store.Remove(ctx, "cart:s1"))
	_, err = store.Get(ctx, "cart:s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_QuotaExceeded(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	store, cleanup := setupTestMongo(t, 32)
	defer cleanup()

	ctx := context.Background()
	err := store.Set(ctx, "cart:s1", strings.Repeat("x", 33))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = store.Get(ctx, "cart:s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
