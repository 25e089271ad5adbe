// Package media manages catalog items (tracks and albums) resolved from
// provider metadata.
package media

import (
	"errors"
	"time"

	"github.com/vmunix/audiarr/internal/provider"
)

// Sentinel errors for the media package.
var (
	// ErrNotFound is returned when a media record does not exist.
	ErrNotFound = errors.New("media not found")

	// ErrImmutableField is returned on attempts to change provider or
	// provider_id after insert.
	ErrImmutableField = errors.New("provider and provider_id are immutable")
)

// Track is one entry of an album track list.
type Track struct {
	TrackNo  int    `json:"track_no"`
	Title    string `json:"title"`
	Duration int    `json:"duration,omitempty"`
}

// Media is a catalog item. Incomplete metadata is tolerated: every field
// except provider and kind may be zero.
type Media struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title,omitempty"`
	Artist      string            `json:"artist,omitempty"`
	Album       string            `json:"album,omitempty"`
	AlbumArtist string            `json:"album_artist,omitempty"`
	Year        int               `json:"year,omitempty"`
	CoverURL    string            `json:"cover_url,omitempty"`
	Duration    int               `json:"duration,omitempty"`
	Provider    provider.Provider `json:"provider"`
	ProviderID  string            `json:"provider_id,omitempty"`
	Kind        provider.Kind     `json:"kind"`
	Tracks      []Track           `json:"tracks,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MetadataUpdate carries the editable metadata fields. Nil pointers mean
// "leave unchanged". Provider and provider ID are not editable.
type MetadataUpdate struct {
	Title       *string
	Artist      *string
	Album       *string
	AlbumArtist *string
	Year        *int
}

// Empty reports whether the update carries no fields at all.
func (u MetadataUpdate) Empty() bool {
	return u.Title == nil && u.Artist == nil && u.Album == nil &&
		u.AlbumArtist == nil && u.Year == nil
}
