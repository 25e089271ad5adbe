package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/audiarr/internal/provider"
)

// fakeExtractor writes a shell script standing in for the extractor
// binary and returns its path.
func fakeExtractor(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRunner_Execute_Progress(t *testing.T) {
	bin := fakeExtractor(t, `
echo "[download] Destination: out.mp3" 1>&2
echo "[download]  12.5% of 3.52MiB at 1.21MiB/s" 1>&2
echo "[download]  50.0% of 3.52MiB at 1.21MiB/s" 1>&2
echo "[download] 100% of 3.52MiB in 00:02" 1>&2
exit 0
`)
	tempDir := t.TempDir()
	r := NewRunner(Config{BinPath: bin, TempDir: tempDir}, testLogger())

	var progress []int
	var startedPID int
	hooks := Hooks{
		OnStart:    func(pid int) { startedPID = pid },
		OnProgress: func(p int) { progress = append(progress, p) },
	}

	result, err := r.Execute(context.Background(), "https://music.youtube.com/watch?v=x", provider.YTMusic, hooks)
	require.NoError(t, err)
	assert.Equal(t, tempDir, result.FilePath)
	assert.NotZero(t, result.ProcessID)
	assert.Equal(t, startedPID, result.ProcessID, "OnStart must see the live pid")

	// 100% during the run is capped to 99; the final 100 comes from the
	// clean exit.
	assert.Equal(t, []int{12, 50, 99, 100}, progress)
	assert.Zero(t, r.Live(), "registry must be empty after completion")
}

func TestRunner_Execute_ProgressMonotonic(t *testing.T) {
	bin := fakeExtractor(t, `
echo "[download]  50.0%" 1>&2
echo "[download]  40.0%" 1>&2
echo "[download]  55.0%" 1>&2
exit 0
`)
	r := NewRunner(Config{BinPath: bin, TempDir: t.TempDir()}, testLogger())

	var progress []int
	_, err := r.Execute(context.Background(), "u", provider.YTMusic, Hooks{
		OnProgress: func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 55, 100}, progress, "regressions must be dropped")
}

func TestRunner_Execute_NonZeroExit(t *testing.T) {
	bin := fakeExtractor(t, `
echo "ERROR: unable to download video data" 1>&2
exit 3
`)
	r := NewRunner(Config{BinPath: bin, TempDir: t.TempDir()}, testLogger())

	_, err := r.Execute(context.Background(), "u", provider.Spotify, Hooks{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractorFailed)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Tail, "ERROR: unable to download video data")
	assert.Zero(t, r.Live(), "registry must be cleared on failure too")
}

func TestRunner_Cancel(t *testing.T) {
	bin := fakeExtractor(t, `
echo "[download]   1.0%" 1>&2
sleep 30
`)
	r := NewRunner(Config{BinPath: bin, TempDir: t.TempDir()}, testLogger())

	done := make(chan error, 1)
	pidCh := make(chan int, 1)
	go func() {
		_, err := r.Execute(context.Background(), "u", provider.YTMusic, Hooks{
			OnStart: func(pid int) { pidCh <- pid },
		})
		done <- err
	}()

	var pid int
	select {
	case pid = <-pidCh:
	case <-time.After(5 * time.Second):
		t.Fatal("extractor never started")
	}

	require.NoError(t, r.Cancel(pid))

	select {
	case err := <-done:
		assert.Error(t, err, "killed extractor must fail the execute call")
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not return after kill")
	}
	assert.Zero(t, r.Live())
}

func TestRunner_Execute_SurvivesCallerCancel(t *testing.T) {
	bin := fakeExtractor(t, `
echo "[download]  10.0%" 1>&2
sleep 1
echo "[download]  90.0%" 1>&2
exit 0
`)
	r := NewRunner(Config{BinPath: bin, TempDir: t.TempDir()}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var progress []int
	_, err := r.Execute(ctx, "u", provider.YTMusic, Hooks{
		OnProgress: func(p int) {
			if p == 10 {
				cancel()
			}
			progress = append(progress, p)
		},
	})
	require.NoError(t, err, "a cancelled caller context must not kill the fetch")
	assert.Contains(t, progress, 90, "the fetch runs to completion")
	assert.Contains(t, progress, 100)
}

func TestRunner_Cancel_UnknownPID(t *testing.T) {
	r := NewRunner(Config{TempDir: t.TempDir()}, testLogger())
	assert.ErrorIs(t, r.Cancel(424242), ErrProcessNotFound)
}

func TestLineRing(t *testing.T) {
	ring := newLineRing(3)
	for _, l := range []string{"a", "b", "c", "d"} {
		ring.Add(l)
	}
	assert.Equal(t, []string{"b", "c", "d"}, ring.Tail())
}

func TestBuildFetchArgs(t *testing.T) {
	cfg := Config{TempDir: "/tmp/dl"}

	args := buildFetchArgs(cfg, "https://open.spotify.com/track/x", provider.Spotify)
	assert.Contains(t, args, "--extract-audio")
	assert.Contains(t, args, "--embed-metadata")
	assert.Equal(t, "https://open.spotify.com/track/x", args[len(args)-1], "url must be the final argument")

	ytArgs := buildFetchArgs(cfg, "u", provider.YTMusic)
	assert.NotEqual(t, args, ytArgs, "output templates differ per provider")
}

func TestBuildProbeArgs(t *testing.T) {
	track := buildProbeArgs("u", provider.Source{Provider: provider.YTMusic, Kind: provider.KindTrack})
	assert.Contains(t, track, "--no-playlist")
	assert.Contains(t, track, "--dump-single-json")

	album := buildProbeArgs("u", provider.Source{Provider: provider.Spotify, Kind: provider.KindAlbum})
	assert.Contains(t, album, "--flat-playlist")
}
