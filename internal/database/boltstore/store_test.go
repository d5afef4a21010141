package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"countryfilter/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	t.Run("missing key", func(t *testing.T) {
		value, err := store.Get(ctx, database.KeySettings)
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "test", database.KeyFilterStats, []byte(`{"tweetsHidden":2}`)))

		value, err := store.Get(ctx, database.KeyFilterStats)
		require.NoError(t, err)
		assert.JSONEq(t, `{"tweetsHidden":2}`, string(value))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "test", database.KeyFilterStats, []byte(`{}`)))

		value, err := store.Get(ctx, database.KeyFilterStats)
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(value))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	t.Run("sees previous value", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "test", "counter", []byte("1")))

		next, err := store.Update(ctx, "test", "counter", func(old []byte) ([]byte, error) {
			assert.Equal(t, "1", string(old))
			return []byte("2"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "2", string(next))
	})

	t.Run("error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := store.Update(ctx, "test", "counter", func(old []byte) ([]byte, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		value, err := store.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "2", string(value))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Update(cctx, "test", "counter", func(old []byte) ([]byte, error) {
			return []byte("3"), nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := setupTestStore(t)

	changes := store.Watch(ctx)
	require.NoError(t, store.Set(ctx, "options", database.KeySettings, []byte(`{"enabled":false}`)))

	select {
	case c := <-changes:
		assert.Equal(t, database.KeySettings, c.Key)
		assert.Equal(t, "options", c.Origin)
		assert.JSONEq(t, `{"enabled":false}`, string(c.Value))
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-changes
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "test", database.KeyDetectedCountries, []byte(`{"India":3}`)))
	require.NoError(t, store.Close())

	store, err = Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer store.Close()

	value, err := store.Get(ctx, database.KeyDetectedCountries)
	require.NoError(t, err)
	assert.JSONEq(t, `{"India":3}`, string(value))
}
