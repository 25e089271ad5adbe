package media

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for treating two
// titles as the same media when no provider ID is available.
const fuzzyThreshold = 0.93

// Store persists media records.
type Store struct {
	db *sql.DB
}

// NewStore creates a media store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a media record and sets ID, CreatedAt and UpdatedAt.
func (s *Store) Create(m *Media) error {
	now := time.Now()
	tracks, err := marshalTracks(m.Tracks)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(`
		INSERT INTO media (title, artist, album, album_artist, year, cover_url, duration,
			provider, provider_id, kind, tracks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(m.Title), nullable(m.Artist), nullable(m.Album), nullable(m.AlbumArtist),
		nullableInt(m.Year), nullable(m.CoverURL), nullableInt(m.Duration),
		m.Provider, nullable(m.ProviderID), m.Kind, tracks, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

const mediaColumns = `id, title, artist, album, album_artist, year, cover_url, duration,
	provider, provider_id, kind, tracks, created_at, updated_at`

// Get retrieves a media record by ID.
func (s *Store) Get(id int64) (*Media, error) {
	row := s.db.QueryRow(`SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get media %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get media %d: %w", id, err)
	}
	return m, nil
}

// GetByProviderID retrieves a media record by its provider-scoped
// identifier. Used for dedup on metadata import.
func (s *Store) GetByProviderID(prov, providerID string) (*Media, error) {
	row := s.db.QueryRow(`
		SELECT `+mediaColumns+` FROM media
		WHERE provider = ? AND provider_id = ?`, prov, providerID)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get media %s/%s: %w", prov, providerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get media %s/%s: %w", prov, providerID, err)
	}
	return m, nil
}

// List returns all media records, newest first.
func (s *Store) List() ([]*Media, error) {
	rows, err := s.db.Query(`SELECT ` + mediaColumns + ` FROM media ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var out []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the total number of media records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM media`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return n, nil
}

// UpdateMetadata applies the editable fields and bumps UpdatedAt.
// A fully empty update is a no-op.
func (s *Store) UpdateMetadata(id int64, u MetadataUpdate) error {
	if u.Empty() {
		return nil
	}

	var sets []string
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Artist != nil {
		sets = append(sets, "artist = ?")
		args = append(args, *u.Artist)
	}
	if u.Album != nil {
		sets = append(sets, "album = ?")
		args = append(args, *u.Album)
	}
	if u.AlbumArtist != nil {
		sets = append(sets, "album_artist = ?")
		args = append(args, *u.AlbumArtist)
	}
	if u.Year != nil {
		sets = append(sets, "year = ?")
		args = append(args, *u.Year)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)

	result, err := s.db.Exec(`UPDATE media SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update media %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update media %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a media record. Referencing downloads keep a null link.
func (s *Store) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete media %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAll removes every media record.
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM media`); err != nil {
		return fmt.Errorf("delete all media: %w", err)
	}
	return nil
}

// ListOrphaned returns media records no download references.
func (s *Store) ListOrphaned() ([]*Media, error) {
	rows, err := s.db.Query(`
		SELECT ` + mediaColumns + ` FROM media
		WHERE id NOT IN (SELECT media_id FROM downloads WHERE media_id IS NOT NULL)`)
	if err != nil {
		return nil, fmt.Errorf("list orphaned media: %w", err)
	}
	defer rows.Close()

	var out []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindSimilar looks up media by fuzzy title match. It is the dedup
// fallback for providers whose metadata carries no stable ID.
func (s *Store) FindSimilar(prov, title string) (*Media, error) {
	if title == "" {
		return nil, fmt.Errorf("find similar: %w", ErrNotFound)
	}
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var best *Media
	var bestScore float32
	for _, m := range all {
		if string(m.Provider) != prov || m.Title == "" {
			continue
		}
		score, err := edlib.StringsSimilarity(strings.ToLower(title), strings.ToLower(m.Title), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	if best == nil || bestScore < fuzzyThreshold {
		return nil, fmt.Errorf("find similar %q: %w", title, ErrNotFound)
	}
	return best, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*Media, error) {
	m := &Media{}
	var title, artist, album, albumArtist, coverURL, providerID, tracks sql.NullString
	var year, duration sql.NullInt64

	err := row.Scan(&m.ID, &title, &artist, &album, &albumArtist, &year, &coverURL,
		&duration, &m.Provider, &providerID, &m.Kind, &tracks, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	m.Title = title.String
	m.Artist = artist.String
	m.Album = album.String
	m.AlbumArtist = albumArtist.String
	m.Year = int(year.Int64)
	m.CoverURL = coverURL.String
	m.Duration = int(duration.Int64)
	m.ProviderID = providerID.String
	if tracks.Valid && tracks.String != "" {
		if err := json.Unmarshal([]byte(tracks.String), &m.Tracks); err != nil {
			return nil, fmt.Errorf("decode track list: %w", err)
		}
	}
	return m, nil
}

func marshalTracks(tracks []Track) (sql.NullString, error) {
	if len(tracks) == 0 {
		return sql.NullString{}, nil
	}
	buf, err := json.Marshal(tracks)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal track list: %w", err)
	}
	return sql.NullString{String: string(buf), Valid: true}, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
