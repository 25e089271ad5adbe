package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/audiarr/internal/cache"
)

func setupCachedStore(t *testing.T) (*CachedStore, *Store) {
	t.Helper()
	store := NewStore(setupTestDB(t))
	c, err := cache.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewCachedStore(store, c), store
}

func TestCachedStore_Get_ServesStaleWithinTTL(t *testing.T) {
	cached, store := setupCachedStore(t)
	d := createTestDownload(t, store, "https://a")

	first, err := cached.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)

	// Write behind the cache's back; the cached read must still see the
	// old row until the TTL lapses.
	require.NoError(t, store.UpdateStatus(d.ID, StatusInProgress, 10, ""))

	stale, err := cached.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stale.Status)

	fresh, err := store.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, fresh.Status)
}

func TestCachedStore_Get_MissNotCached(t *testing.T) {
	cached, store := setupCachedStore(t)

	_, err := cached.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	// The miss must not poison the cache once the row exists.
	d := createTestDownload(t, store, "https://a")
	require.EqualValues(t, 1, d.ID)

	got, err := cached.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.URL, got.URL)
}

func TestCachedStore_ActiveByNormalizedURL_FreshEnqueueVisible(t *testing.T) {
	cached, store := setupCachedStore(t)

	_, err := cached.ActiveByNormalizedURL("https://a")
	assert.ErrorIs(t, err, ErrNotFound)

	createTestDownload(t, store, "https://a")

	// Misses are never cached, so the duplicate check sees the new row
	// immediately.
	got, err := cached.ActiveByNormalizedURL("https://a")
	require.NoError(t, err)
	assert.Equal(t, "https://a", got.NormalizedURL)
}

func TestCachedStore_NextPending_NeverCached(t *testing.T) {
	cached, store := setupCachedStore(t)

	_, err := cached.NextPending()
	assert.ErrorIs(t, err, ErrNotFound)

	d := createTestDownload(t, store, "https://a")
	next, err := cached.NextPending()
	require.NoError(t, err)
	assert.Equal(t, d.ID, next.ID)

	require.NoError(t, store.UpdateStatus(d.ID, StatusInProgress, 0, ""))
	_, err = cached.NextPending()
	assert.ErrorIs(t, err, ErrNotFound, "scheduling reads bypass the cache")
}

func TestCachedStore_CountByStatus(t *testing.T) {
	cached, store := setupCachedStore(t)
	createTestDownload(t, store, "https://a")

	n, err := cached.CountByStatus(StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	createTestDownload(t, store, "https://b")
	n, err = cached.CountByStatus(StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "cached count holds within the TTL")
}
