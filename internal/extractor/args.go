// Package extractor drives the external yt-dlp subprocess for metadata
// probing and audio fetching.
package extractor

import (
	"path/filepath"

	"github.com/vmunix/audiarr/internal/provider"
)

// Config holds extractor invocation settings.
type Config struct {
	BinPath string // extractor binary, default "yt-dlp"
	TempDir string // output root for fetched audio
}

func (c Config) binPath() string {
	if c.BinPath == "" {
		return "yt-dlp"
	}
	return c.BinPath
}

// buildFetchArgs constructs the argv for a content fetch. No shell is
// involved; the URL is passed as a single argument.
func buildFetchArgs(cfg Config, url string, prov provider.Provider) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--embed-thumbnail",
		"--embed-metadata",
		"--newline",
		"--no-warnings",
	}

	switch prov {
	case provider.Spotify:
		args = append(args,
			"--output", filepath.Join(cfg.TempDir, "%(artist)s", "%(album)s", "%(track_number)02d - %(title)s.%(ext)s"),
			"--parse-metadata", "%(artist)s:%(meta_album_artist)s",
		)
	case provider.YTMusic:
		args = append(args,
			"--output", filepath.Join(cfg.TempDir, "%(artist,uploader)s", "%(album,playlist_title)s", "%(title)s.%(ext)s"),
			"--parse-metadata", "%(uploader)s:%(meta_artist)s",
		)
	default:
		args = append(args, "--output", filepath.Join(cfg.TempDir, "%(title)s.%(ext)s"))
	}

	return append(args, url)
}

// buildProbeArgs constructs the argv for a metadata-only probe. The
// extractor emits a single JSON document on stdout.
func buildProbeArgs(url string, src provider.Source) []string {
	args := []string{
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
	}
	if src.Kind == provider.KindAlbum {
		// Album/playlist pages: entry metadata is enough for a track list.
		args = append(args, "--flat-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	return append(args, url)
}
