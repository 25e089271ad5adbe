package media

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/audiarr/internal/migrations"
	"github.com/vmunix/audiarr/internal/provider"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err, "apply schema")
	return db
}

func testTrack(title string) *Media {
	return &Media{
		Title:      title,
		Artist:     "Daft Punk",
		Album:      "Discovery",
		Year:       2001,
		Provider:   provider.Spotify,
		ProviderID: "4uLU6hMCjMI75M1A2tKUQC",
		Kind:       provider.KindTrack,
	}
}

func TestStore_CreateGet(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := testTrack("One More Time")
	require.NoError(t, store.Create(m))
	assert.NotZero(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	got, err := store.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "One More Time", got.Title)
	assert.Equal(t, provider.Spotify, got.Provider)
	assert.Equal(t, 2001, got.Year)
}

func TestStore_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	_, err := store.Get(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_TrackList(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := &Media{
		Title:      "Discovery",
		Artist:     "Daft Punk",
		Provider:   provider.Spotify,
		ProviderID: "2noRn2Aes5aoNVsU6iWThc",
		Kind:       provider.KindAlbum,
		Tracks: []Track{
			{TrackNo: 1, Title: "One More Time", Duration: 320},
			{TrackNo: 2, Title: "Aerodynamic", Duration: 212},
		},
	}
	require.NoError(t, store.Create(m))

	got, err := store.Get(m.ID)
	require.NoError(t, err)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, 2, got.Tracks[1].TrackNo)
	assert.Equal(t, "Aerodynamic", got.Tracks[1].Title)
}

func TestStore_GetByProviderID(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := testTrack("One More Time")
	require.NoError(t, store.Create(m))

	got, err := store.GetByProviderID("spotify", "4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = store.GetByProviderID("spotify", "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ProviderIDUnique(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	require.NoError(t, store.Create(testTrack("One More Time")))
	err := store.Create(testTrack("Duplicate"))
	assert.Error(t, err, "duplicate (provider, provider_id) must be rejected")
}

func TestStore_EmptyProviderIDNotUnique(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	a := &Media{Title: "A", Provider: provider.YTMusic, Kind: provider.KindTrack}
	b := &Media{Title: "B", Provider: provider.YTMusic, Kind: provider.KindTrack}
	require.NoError(t, store.Create(a))
	require.NoError(t, store.Create(b), "empty provider_id must not collide")
}

func TestStore_UpdateMetadata(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := testTrack("One More Time")
	require.NoError(t, store.Create(m))

	title := "One More Time (Radio Edit)"
	year := 2002
	require.NoError(t, store.UpdateMetadata(m.ID, MetadataUpdate{Title: &title, Year: &year}))

	got, err := store.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, 2002, got.Year)
	assert.Equal(t, "Daft Punk", got.Artist, "unspecified fields untouched")
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestStore_UpdateMetadata_EmptyNoOp(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := testTrack("One More Time")
	require.NoError(t, store.Create(m))
	require.NoError(t, store.UpdateMetadata(m.ID, MetadataUpdate{}))

	got, err := store.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "One More Time", got.Title)
}

func TestStore_UpdateMetadata_NotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	title := "x"
	err := store.UpdateMetadata(42, MetadataUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListOrphaned(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	linked := testTrack("Linked")
	require.NoError(t, store.Create(linked))
	orphan := &Media{Title: "Orphan", Provider: provider.Spotify, ProviderID: "other", Kind: provider.KindTrack}
	require.NoError(t, store.Create(orphan))

	_, err := db.Exec(`
		INSERT INTO downloads (url, normalized_url, media_id, status, progress, created_at)
		VALUES ('u', 'u', ?, 'completed', 100, ?)`,
		linked.ID, time.Now(),
	)
	require.NoError(t, err)

	orphans, err := store.ListOrphaned()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)
}

func TestStore_FindSimilar(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := &Media{Title: "Harder Better Faster Stronger", Provider: provider.YTMusic, Kind: provider.KindTrack}
	require.NoError(t, store.Create(m))

	got, err := store.FindSimilar("ytmusic", "Harder, Better, Faster, Stronger")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = store.FindSimilar("ytmusic", "Completely Different Song")
	assert.ErrorIs(t, err, ErrNotFound)

	// Provider mismatch is never a match.
	_, err = store.FindSimilar("spotify", "Harder Better Faster Stronger")
	assert.ErrorIs(t, err, ErrNotFound)
}
