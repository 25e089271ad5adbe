// Package api implements the REST surface over the download manager.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vmunix/audiarr/internal/download"
	"github.com/vmunix/audiarr/internal/events"
	"github.com/vmunix/audiarr/internal/extractor"
	"github.com/vmunix/audiarr/internal/media"
	"github.com/vmunix/audiarr/internal/provider"
	"github.com/vmunix/audiarr/internal/worker"
)

// Downloads is the manager surface the API consumes.
type Downloads interface {
	Enqueue(ctx context.Context, url string) (*download.Download, error)
	GetStatus(id int64) (*download.Download, *media.Media, error)
	List(status *download.Status, page, pageSize int) ([]*download.Download, int, error)
	Logs(id int64, page, limit int) ([]events.Entry, int, error)
	Cancel(id int64) error
	Retry(id int64) error
	MoveToDestination(id int64) (string, error)
	GetMedia(id int64) (*media.Media, error)
	UpdateMediaMetadata(id int64, u media.MetadataUpdate) error
}

// WorkerState exposes the worker's counters for the stats endpoint.
type WorkerState interface {
	State() worker.State
}

// StatusCounter counts queue entries per status.
type StatusCounter interface {
	Count() (int, error)
	CountByStatus(status download.Status) (int, error)
}

// Sandbox runs the extractor with raw caller arguments.
type Sandbox interface {
	Run(ctx context.Context, args []string) (*extractor.SandboxResult, error)
	Stream(ctx context.Context, args []string, emit func(extractor.SandboxEvent)) error
}

var (
	_ Downloads     = (*download.Manager)(nil)
	_ StatusCounter = (*download.CachedStore)(nil)
	_ WorkerState   = (*worker.Worker)(nil)
	_ Sandbox       = (*extractor.Sandbox)(nil)
)

// Server is the HTTP API server.
type Server struct {
	downloads Downloads
	counts    StatusCounter
	workers   WorkerState
	sandbox   Sandbox
	log       *slog.Logger
}

// New creates an API server. workers and sandbox may be nil; the stats
// and sandbox routes then degrade gracefully.
func New(downloads Downloads, counts StatusCounter, workers WorkerState, sandbox Sandbox, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		downloads: downloads,
		counts:    counts,
		workers:   workers,
		sandbox:   sandbox,
		log:       log,
	}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Route("/downloads", func(r chi.Router) {
			r.Post("/", s.enqueue)
			r.Get("/", s.list)
			r.Get("/stats", s.stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.get)
				r.Get("/logs", s.logs)
				r.Post("/cancel", s.cancel)
				r.Post("/retry", s.retry)
				r.Post("/move", s.move)
			})
		})
		r.Route("/media", func(r chi.Router) {
			r.Get("/{id}", s.getMedia)
			r.Patch("/{id}", s.updateMedia)
		})
		if s.sandbox != nil {
			r.Route("/sandbox", func(r chi.Router) {
				r.Post("/yt-dlp", s.sandboxRun)
				r.Post("/yt-dlp/stream", s.sandboxStream)
			})
		}
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 200 { // Only capture first WriteHeader call
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, errorResponse{Error: message, Code: errCode})
}

// mapError translates domain errors to an HTTP status and error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, download.ErrNotFound), errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, provider.ErrInvalidURL):
		return http.StatusBadRequest, "invalid_url"
	case errors.Is(err, download.ErrDuplicate):
		return http.StatusBadRequest, "duplicate_active"
	case errors.Is(err, download.ErrQueueFull):
		return http.StatusBadRequest, "queue_full"
	case errors.Is(err, download.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, download.ErrBadPagination):
		return http.StatusBadRequest, "bad_pagination"
	case errors.Is(err, media.ErrImmutableField):
		return http.StatusBadRequest, "immutable_field"
	case errors.Is(err, download.ErrInsufficientStorage):
		return http.StatusInsufficientStorage, "insufficient_storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	code, errCode := mapError(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeError(w, code, errCode, err.Error())
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enqueueRequest struct {
	URL string `json:"url"`
}

type enqueueResponse struct {
	DownloadID int64  `json:"downloadId"`
	MediaID    *int64 `json:"mediaId"`
	URL        string `json:"url"`
	Status     string `json:"status"`
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_url", "invalid request body")
		return
	}

	d, err := s.downloads.Enqueue(r.Context(), req.URL)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, enqueueResponse{
		DownloadID: d.ID,
		MediaID:    d.MediaID,
		URL:        d.URL,
		Status:     string(d.Status),
	})
}

type downloadResponse struct {
	Download *download.Download `json:"download"`
	Media    *media.Media       `json:"media,omitempty"`
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid download id")
		return
	}
	d, rec, err := s.downloads.GetStatus(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{Download: d, Media: rec})
}

type listResponse struct {
	Downloads []*download.Download `json:"downloads"`
	Total     int                  `json:"total"`
	Page      int                  `json:"page"`
	PageSize  int                  `json:"pageSize"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)

	var status *download.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := download.Status(raw)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_state", "unknown status filter")
			return
		}
		status = &st
	}

	list, total, err := s.downloads.List(status, page, pageSize)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []*download.Download{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Downloads: list,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}

type paginationInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type logsResponse struct {
	Logs       []events.Entry `json:"logs"`
	Pagination paginationInfo `json:"pagination"`
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid download id")
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	entries, total, err := s.downloads.Logs(id, page, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []events.Entry{}
	}
	writeJSON(w, http.StatusOK, logsResponse{
		Logs:       entries,
		Pagination: paginationInfo{Page: page, Limit: limit, Total: total},
	})
}

type successResponse struct {
	Success  bool   `json:"success"`
	DestPath string `json:"destPath,omitempty"`
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.downloads.Cancel)
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	s.simpleAction(w, r, s.downloads.Retry)
}

func (s *Server) simpleAction(w http.ResponseWriter, r *http.Request, action func(int64) error) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid download id")
		return
	}
	if err := action(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid download id")
		return
	}
	dest, err := s.downloads.MoveToDestination(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, DestPath: dest})
}

func (s *Server) getMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid media id")
		return
	}
	rec, err := s.downloads.GetMedia(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*media.Media{"media": rec})
}

type mediaUpdateRequest struct {
	Title       *string `json:"title"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
	AlbumArtist *string `json:"albumArtist"`
	Year        *int    `json:"year"`

	// Present only to reject attempts explicitly.
	Provider   *string `json:"provider"`
	ProviderID *string `json:"providerId"`
}

func (s *Server) updateMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid media id")
		return
	}

	var req mediaUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_state", "invalid request body")
		return
	}
	if req.Provider != nil || req.ProviderID != nil {
		s.writeDomainError(w, media.ErrImmutableField)
		return
	}

	err = s.downloads.UpdateMediaMetadata(id, media.MetadataUpdate{
		Title:       req.Title,
		Artist:      req.Artist,
		Album:       req.Album,
		AlbumArtist: req.AlbumArtist,
		Year:        req.Year,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type statsResponse struct {
	Total    int                     `json:"total"`
	ByStatus map[download.Status]int `json:"byStatus"`
	Worker   *worker.State           `json:"worker,omitempty"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	total, err := s.counts.Count()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	byStatus := make(map[download.Status]int)
	for _, st := range []download.Status{
		download.StatusPending, download.StatusInProgress,
		download.StatusCompleted, download.StatusFailed, download.StatusCancelled,
	} {
		n, err := s.counts.CountByStatus(st)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		byStatus[st] = n
	}

	resp := statsResponse{Total: total, ByStatus: byStatus}
	if s.workers != nil {
		state := s.workers.State()
		resp.Worker = &state
	}
	writeJSON(w, http.StatusOK, resp)
}
