// Package provider classifies and canonicalizes media page URLs.
package provider

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Provider identifies a content platform.
type Provider string

const (
	Spotify Provider = "spotify"
	YTMusic Provider = "ytmusic"
)

// Kind is the media kind a URL resolves to.
type Kind string

const (
	KindTrack Kind = "track"
	KindAlbum Kind = "album"
)

// ErrInvalidURL is returned when a URL does not belong to a supported platform.
var ErrInvalidURL = errors.New("url is not a supported media page")

var (
	spotifyPattern = regexp.MustCompile(`^open\.spotify\.com$`)
	ytmusicPattern = regexp.MustCompile(`^music\.youtube\.com$`)
)

// Source is the result of classifying a URL.
type Source struct {
	Provider Provider
	Kind     Kind
}

// Normalize returns the canonical form of a URL used for duplicate
// detection: trimmed, with scheme and host lowercased. Path, query and
// fragment are preserved byte-for-byte. Unparseable input falls back to
// the trimmed, lowercased string.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(trimmed)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// Detect classifies a URL by platform and media kind.
// Returns ok=false for URLs outside the supported platforms.
func Detect(raw string) (Source, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Source{}, false
	}
	host := strings.ToLower(u.Hostname())
	path := u.Path

	switch {
	case spotifyPattern.MatchString(host):
		if strings.HasPrefix(path, "/track/") {
			return Source{Provider: Spotify, Kind: KindTrack}, true
		}
		if strings.HasPrefix(path, "/album/") {
			return Source{Provider: Spotify, Kind: KindAlbum}, true
		}
	case ytmusicPattern.MatchString(host):
		if strings.HasPrefix(path, "/watch") {
			return Source{Provider: YTMusic, Kind: KindTrack}, true
		}
		if strings.HasPrefix(path, "/playlist") {
			return Source{Provider: YTMusic, Kind: KindAlbum}, true
		}
	}
	return Source{}, false
}

// Validate returns the provider for a URL or ErrInvalidURL.
func Validate(raw string) (Provider, error) {
	src, ok := Detect(raw)
	if !ok {
		return "", ErrInvalidURL
	}
	return src.Provider, nil
}
