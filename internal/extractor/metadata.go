package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/vmunix/audiarr/internal/media"
	"github.com/vmunix/audiarr/internal/provider"
)

// titleNoise lists known noisy substrings the platforms append to titles,
// stripped during metadata mapping.
var titleNoise = map[provider.Provider][]string{
	provider.Spotify: {
		" - Remastered",
		" (Remastered)",
		" - Radio Edit",
	},
	provider.YTMusic: {
		" (Official Video)",
		" (Official Audio)",
		" (Official Music Video)",
		" [Official Video]",
		" [Official Audio]",
		" (Lyric Video)",
		" (Audio)",
		" (Visualizer)",
	},
}

// probeDoc is the extractor's JSON metadata document. Albums carry their
// tracks in entries.
type probeDoc struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	Uploader    string     `json:"uploader"`
	Album       string     `json:"album"`
	AlbumArtist string     `json:"album_artist"`
	ReleaseYear int        `json:"release_year"`
	UploadDate  string     `json:"upload_date"`
	Thumbnail   string     `json:"thumbnail"`
	Duration    float64    `json:"duration"`
	Entries     []probeDoc `json:"entries"`
}

// Prober invokes the extractor in dump-metadata mode.
type Prober struct {
	cfg Config
	log *slog.Logger
}

// NewProber creates a metadata prober.
func NewProber(cfg Config, log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	return &Prober{cfg: cfg, log: log}
}

// Probe runs the extractor against url and maps its JSON output into a
// media candidate. Partial fields are tolerated; only provider and kind
// are guaranteed.
func (p *Prober) Probe(ctx context.Context, url string, src provider.Source) (*media.Media, error) {
	args := buildProbeArgs(url, src)
	cmd := exec.CommandContext(ctx, p.cfg.binPath(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			p.log.Warn("metadata probe exited non-zero", "url", url, "exit_code", exitErr.ExitCode())
			return nil, &ExitError{Code: exitErr.ExitCode(), Tail: lastLines(stderr.String(), 5)}
		}
		return nil, fmt.Errorf("%w: run: %v", ErrExtractorFailed, err)
	}

	var doc probeDoc
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}

	return p.mapDoc(&doc, src), nil
}

// mapDoc turns a probe document into a media candidate.
func (p *Prober) mapDoc(doc *probeDoc, src provider.Source) *media.Media {
	m := &media.Media{
		Title:       cleanTitle(doc.Title, src.Provider),
		Artist:      firstNonEmpty(doc.Artist, doc.Uploader),
		Album:       doc.Album,
		AlbumArtist: doc.AlbumArtist,
		Year:        docYear(doc),
		CoverURL:    doc.Thumbnail,
		Duration:    int(doc.Duration),
		Provider:    src.Provider,
		ProviderID:  doc.ID,
		Kind:        src.Kind,
	}

	if src.Kind == provider.KindAlbum {
		if m.Album == "" {
			m.Album = m.Title
		}
		for i, entry := range doc.Entries {
			m.Tracks = append(m.Tracks, media.Track{
				TrackNo:  i + 1,
				Title:    cleanTitle(entry.Title, src.Provider),
				Duration: int(entry.Duration),
			})
			if m.Artist == "" {
				m.Artist = firstNonEmpty(entry.Artist, entry.Uploader)
			}
		}
	}
	return m
}

// cleanTitle strips known platform noise and normalizes to NFC.
func cleanTitle(title string, prov provider.Provider) string {
	for _, noise := range titleNoise[prov] {
		title = strings.ReplaceAll(title, noise, "")
	}
	return norm.NFC.String(strings.TrimSpace(title))
}

func docYear(doc *probeDoc) int {
	if doc.ReleaseYear > 0 {
		return doc.ReleaseYear
	}
	if len(doc.UploadDate) >= 4 {
		if year, err := strconv.Atoi(doc.UploadDate[:4]); err == nil {
			return year
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func lastLines(s string, n int) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}
