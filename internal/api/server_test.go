package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/audiarr/internal/download"
	"github.com/vmunix/audiarr/internal/events"
	"github.com/vmunix/audiarr/internal/extractor"
	"github.com/vmunix/audiarr/internal/media"
	"github.com/vmunix/audiarr/internal/worker"
)

// fakeDownloads is a canned-response implementation of Downloads.
type fakeDownloads struct {
	enqueueResult *download.Download
	enqueueErr    error
	getDownload   *download.Download
	getMediaRec   *media.Media
	getErr        error
	listResult    []*download.Download
	listTotal     int
	listErr       error
	logsResult    []events.Entry
	logsTotal     int
	logsErr       error
	actionErr     error
	movePath      string
	mediaRec      *media.Media
	mediaErr      error
	updateErr     error

	lastEnqueuedURL string
	lastUpdate      media.MetadataUpdate
}

func (f *fakeDownloads) Enqueue(ctx context.Context, url string) (*download.Download, error) {
	f.lastEnqueuedURL = url
	return f.enqueueResult, f.enqueueErr
}

func (f *fakeDownloads) GetStatus(id int64) (*download.Download, *media.Media, error) {
	return f.getDownload, f.getMediaRec, f.getErr
}

func (f *fakeDownloads) List(status *download.Status, page, pageSize int) ([]*download.Download, int, error) {
	return f.listResult, f.listTotal, f.listErr
}

func (f *fakeDownloads) Logs(id int64, page, limit int) ([]events.Entry, int, error) {
	return f.logsResult, f.logsTotal, f.logsErr
}

func (f *fakeDownloads) Cancel(id int64) error { return f.actionErr }
func (f *fakeDownloads) Retry(id int64) error  { return f.actionErr }

func (f *fakeDownloads) MoveToDestination(id int64) (string, error) {
	return f.movePath, f.actionErr
}

func (f *fakeDownloads) GetMedia(id int64) (*media.Media, error) {
	return f.mediaRec, f.mediaErr
}

func (f *fakeDownloads) UpdateMediaMetadata(id int64, u media.MetadataUpdate) error {
	f.lastUpdate = u
	return f.updateErr
}

type fakeCounter struct {
	total    int
	byStatus map[download.Status]int
}

func (f *fakeCounter) Count() (int, error) { return f.total, nil }
func (f *fakeCounter) CountByStatus(s download.Status) (int, error) {
	return f.byStatus[s], nil
}

type fakeWorkerState struct{ state worker.State }

func (f *fakeWorkerState) State() worker.State { return f.state }

func testServer(t *testing.T, downloads *fakeDownloads) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	counter := &fakeCounter{byStatus: map[download.Status]int{}}
	return New(downloads, counter, &fakeWorkerState{}, nil, log)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, testServer(t, &fakeDownloads{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestEnqueue(t *testing.T) {
	f := &fakeDownloads{enqueueResult: &download.Download{
		ID: 7, URL: "https://music.youtube.com/watch?v=x", Status: download.StatusPending,
	}}
	rec := doRequest(t, testServer(t, f), http.MethodPost, "/api/downloads",
		map[string]string{"url": "https://music.youtube.com/watch?v=x"})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[enqueueResponse](t, rec)
	assert.EqualValues(t, 7, resp.DownloadID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "https://music.youtube.com/watch?v=x", f.lastEnqueuedURL)
}

func TestEnqueue_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantKind string
	}{
		{fmt.Errorf("wrap: %w", download.ErrDuplicate), http.StatusBadRequest, "duplicate_active"},
		{download.ErrQueueFull, http.StatusBadRequest, "queue_full"},
		{download.ErrInsufficientStorage, http.StatusInsufficientStorage, "insufficient_storage"},
	}
	for _, tt := range tests {
		f := &fakeDownloads{enqueueErr: tt.err}
		rec := doRequest(t, testServer(t, f), http.MethodPost, "/api/downloads",
			map[string]string{"url": "https://open.spotify.com/track/x"})
		assert.Equal(t, tt.wantCode, rec.Code)
		assert.Equal(t, tt.wantKind, decodeBody[errorResponse](t, rec).Code)
	}
}

func TestGetDownload(t *testing.T) {
	f := &fakeDownloads{
		getDownload: &download.Download{ID: 3, Status: download.StatusCompleted},
		getMediaRec: &media.Media{ID: 9, Title: "Song"},
	}
	rec := doRequest(t, testServer(t, f), http.MethodGet, "/api/downloads/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[downloadResponse](t, rec)
	assert.EqualValues(t, 3, resp.Download.ID)
	require.NotNil(t, resp.Media)
	assert.Equal(t, "Song", resp.Media.Title)
}

func TestGetDownload_NotFound(t *testing.T) {
	f := &fakeDownloads{getErr: download.ErrNotFound}
	rec := doRequest(t, testServer(t, f), http.MethodGet, "/api/downloads/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, testServer(t, f), http.MethodGet, "/api/downloads/notanumber", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList(t *testing.T) {
	f := &fakeDownloads{
		listResult: []*download.Download{{ID: 1}, {ID: 2}},
		listTotal:  2,
	}
	rec := doRequest(t, testServer(t, f), http.MethodGet, "/api/downloads?page=1&pageSize=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[listResponse](t, rec)
	assert.Len(t, resp.Downloads, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 20, resp.PageSize)
}

func TestList_BadPagination(t *testing.T) {
	f := &fakeDownloads{listErr: download.ErrBadPagination}
	rec := doRequest(t, testServer(t, f), http.MethodGet, "/api/downloads?pageSize=101", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_pagination", decodeBody[errorResponse](t, rec).Code)
}

func TestList_UnknownStatusFilter(t *testing.T) {
	rec := doRequest(t, testServer(t, &fakeDownloads{}), http.MethodGet, "/api/downloads?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogs(t *testing.T) {
	f := &fakeDownloads{
		logsResult: []events.Entry{{ID: 1, Type: events.DownloadEnqueued}},
		logsTotal:  1,
	}
	rec := doRequest(t, testServer(t, f), http.MethodGet, "/api/downloads/1/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[logsResponse](t, rec)
	assert.Len(t, resp.Logs, 1)
	assert.Equal(t, 1, resp.Pagination.Total)
	assert.Equal(t, 50, resp.Pagination.Limit)
}

func TestCancelRetry(t *testing.T) {
	rec := doRequest(t, testServer(t, &fakeDownloads{}), http.MethodPost, "/api/downloads/1/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[successResponse](t, rec).Success)

	f := &fakeDownloads{actionErr: download.ErrInvalidState}
	rec = doRequest(t, testServer(t, f), http.MethodPost, "/api/downloads/1/retry", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody[errorResponse](t, rec).Code)
}

func TestMove(t *testing.T) {
	f := &fakeDownloads{movePath: "/library/42"}
	rec := doRequest(t, testServer(t, f), http.MethodPost, "/api/downloads/1/move", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[successResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "/library/42", resp.DestPath)
}

func TestUpdateMedia(t *testing.T) {
	f := &fakeDownloads{}
	title := "New Title"
	rec := doRequest(t, testServer(t, f), http.MethodPatch, "/api/media/9",
		map[string]string{"title": title})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.lastUpdate.Title)
	assert.Equal(t, title, *f.lastUpdate.Title)
}

func TestUpdateMedia_ImmutableField(t *testing.T) {
	rec := doRequest(t, testServer(t, &fakeDownloads{}), http.MethodPatch, "/api/media/9",
		map[string]string{"provider": "spotify"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "immutable_field", decodeBody[errorResponse](t, rec).Code)
}

func TestStats(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	counter := &fakeCounter{total: 5, byStatus: map[download.Status]int{
		download.StatusPending:   2,
		download.StatusCompleted: 3,
	}}
	s := New(&fakeDownloads{}, counter, &fakeWorkerState{state: worker.State{IsRunning: true}}, nil, log)

	rec := doRequest(t, s, http.MethodGet, "/api/downloads/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[statsResponse](t, rec)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 2, resp.ByStatus[download.StatusPending])
	require.NotNil(t, resp.Worker)
	assert.True(t, resp.Worker.IsRunning)
}

func TestSandboxRoutes_DisabledWithoutSandbox(t *testing.T) {
	rec := doRequest(t, testServer(t, &fakeDownloads{}), http.MethodPost, "/api/sandbox/yt-dlp",
		map[string][]string{"args": {"--version"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeSandbox struct {
	result *extractor.SandboxResult
	events []extractor.SandboxEvent
}

func (f *fakeSandbox) Run(ctx context.Context, args []string) (*extractor.SandboxResult, error) {
	return f.result, nil
}

func (f *fakeSandbox) Stream(ctx context.Context, args []string, emit func(extractor.SandboxEvent)) error {
	for _, e := range f.events {
		emit(e)
	}
	return nil
}

func TestSandboxRun(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sandbox := &fakeSandbox{result: &extractor.SandboxResult{Stdout: "{}", ExitCode: 0, IsJSONOutput: true}}
	s := New(&fakeDownloads{}, &fakeCounter{byStatus: map[download.Status]int{}}, nil, sandbox, log)

	rec := doRequest(t, s, http.MethodPost, "/api/sandbox/yt-dlp",
		map[string][]string{"args": {"--dump-single-json", "u"}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[extractor.SandboxResult](t, rec)
	assert.True(t, resp.IsJSONOutput)

	rec = doRequest(t, s, http.MethodPost, "/api/sandbox/yt-dlp", map[string][]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSandboxStream(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sandbox := &fakeSandbox{events: []extractor.SandboxEvent{
		{Type: "start"},
		{Type: "stderr", Line: "[download]  10.0%"},
		{Type: "progress", Progress: 10},
		{Type: "complete", ExitCode: 0},
	}}
	s := New(&fakeDownloads{}, &fakeCounter{byStatus: map[download.Status]int{}}, nil, sandbox, log)

	rec := doRequest(t, s, http.MethodPost, "/api/sandbox/yt-dlp/stream",
		map[string][]string{"args": {"u"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: start")
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, "event: complete")
}
