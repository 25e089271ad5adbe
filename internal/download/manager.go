package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmunix/audiarr/internal/events"
	"github.com/vmunix/audiarr/internal/extractor"
	"github.com/vmunix/audiarr/internal/media"
	"github.com/vmunix/audiarr/internal/provider"
)

//go:generate mockgen -source=manager.go -destination=mocks/manager_mocks.go -package=mocks

// maxPageSize bounds list and log pagination.
const maxPageSize = 100

// Runner executes the extractor in fetch mode.
type Runner interface {
	Execute(ctx context.Context, url string, prov provider.Provider, hooks extractor.Hooks) (*extractor.Result, error)
	Cancel(processID int) error
}

// Prober executes the extractor in metadata-probe mode.
type Prober interface {
	Probe(ctx context.Context, url string, src provider.Source) (*media.Media, error)
}

// StorageProbe reports free disk space.
type StorageProbe interface {
	HasAtLeast(path string, gb int) (bool, error)
	AvailableGB(path string) (int, error)
}

// EventLog records download lifecycle events.
type EventLog interface {
	Append(downloadID int64, typ events.Type, message string, metadata map[string]any) (int64, error)
	ForDownload(downloadID int64, page, pageSize int) ([]events.Entry, error)
	CountForDownload(downloadID int64) (int, error)
	Prune(days int) (int64, error)
}

// MediaRepository is the media persistence surface the manager consumes.
type MediaRepository interface {
	Create(m *media.Media) error
	Get(id int64) (*media.Media, error)
	GetByProviderID(prov, providerID string) (*media.Media, error)
	FindSimilar(prov, title string) (*media.Media, error)
	UpdateMetadata(id int64, u media.MetadataUpdate) error
	ListOrphaned() ([]*media.Media, error)
	Delete(id int64) error
}

// ManagerConfig holds the orchestration policy knobs.
type ManagerConfig struct {
	TempDir              string
	DestDir              string
	MinStorageGB         int
	MaxPending           int
	CleanupRetentionDays int
	LogRetentionDays     int
	StallTimeout         time.Duration
	ProgressLogThreshold int
}

// Manager orchestrates download lifecycle operations.
type Manager struct {
	store   Repository
	media   MediaRepository
	events  EventLog
	runner  Runner
	prober  Prober
	storage StorageProbe
	cfg     ManagerConfig
	log     *slog.Logger

	// Per-download threshold state for download:progress log entries,
	// cleared at terminal transitions.
	mu         sync.Mutex
	lastLogged map[int64]int
}

// NewManager creates a download manager.
func NewManager(store Repository, mediaRepo MediaRepository, eventLog EventLog,
	runner Runner, prober Prober, storage StorageProbe, cfg ManagerConfig, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:      store,
		media:      mediaRepo,
		events:     eventLog,
		runner:     runner,
		prober:     prober,
		storage:    storage,
		cfg:        cfg,
		log:        log,
		lastLogged: make(map[int64]int),
	}
}

// Enqueue admits a URL into the queue. Metadata import runs detached and
// never fails the call.
func (m *Manager) Enqueue(ctx context.Context, url string) (*Download, error) {
	normalized := provider.Normalize(url)
	if _, err := provider.Validate(url); err != nil {
		return nil, err
	}

	_, err := m.store.ActiveByNormalizedURL(normalized)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, normalized)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	// Admission counts bypass the read cache, same as the other lifecycle
	// guards: a burst of enqueues inside one TTL window must not slip
	// past the pending limit.
	pending, err := m.store.Fresh().CountByStatus(StatusPending)
	if err != nil {
		return nil, err
	}
	if pending >= m.cfg.MaxPending {
		return nil, fmt.Errorf("%w: %d pending", ErrQueueFull, pending)
	}

	d := &Download{URL: url, NormalizedURL: normalized, Status: StatusPending}
	if err := m.store.Create(d); err != nil {
		return nil, err
	}
	m.appendEvent(d.ID, events.DownloadEnqueued, "Download enqueued", map[string]any{"url": url})
	m.log.Info("download enqueued", "download_id", d.ID, "url", url)

	// Detached metadata import: observable only via the media link and
	// the metadata:found log entry.
	go func() {
		if err := m.linkMetadata(context.Background(), d, true); err != nil {
			m.log.Warn("metadata import failed", "download_id", d.ID, "error", err)
		}
	}()

	return d, nil
}

// linkMetadata probes the extractor for metadata, deduplicates against
// existing media and links the download. With requirePending set, the
// link is skipped if the download has already left the queue.
func (m *Manager) linkMetadata(ctx context.Context, d *Download, requirePending bool) error {
	src, ok := provider.Detect(d.URL)
	if !ok {
		return provider.ErrInvalidURL
	}

	m.appendEvent(d.ID, events.MetadataFetching, "Fetching metadata", nil)

	candidate, err := m.prober.Probe(ctx, d.URL, src)
	if err != nil {
		return err
	}

	rec, err := m.findExistingMedia(src, candidate)
	switch {
	case errors.Is(err, media.ErrNotFound):
		if err := m.media.Create(candidate); err != nil {
			return err
		}
		rec = candidate
	case err != nil:
		return err
	}

	m.appendEvent(d.ID, events.MetadataFound, "Metadata found", map[string]any{
		"media_id": rec.ID,
		"title":    rec.Title,
	})

	if requirePending {
		fresh, err := m.store.Fresh().Get(d.ID)
		if err != nil {
			return err
		}
		if fresh.Status != StatusPending {
			return nil
		}
	}
	return m.store.UpdateMediaID(d.ID, rec.ID)
}

func (m *Manager) findExistingMedia(src provider.Source, candidate *media.Media) (*media.Media, error) {
	if candidate.ProviderID != "" {
		return m.media.GetByProviderID(string(src.Provider), candidate.ProviderID)
	}
	return m.media.FindSimilar(string(src.Provider), candidate.Title)
}

// Process runs one pending download to a terminal state. It is driven by
// the worker; the returned error exists for the worker's counters and is
// not user-visible once the status is persisted.
func (m *Manager) Process(ctx context.Context, id int64) error {
	d, err := m.store.Fresh().Get(id)
	if err != nil {
		return err
	}
	if d.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrInvalidState, d.Status)
	}

	defer m.clearProgressState(id)

	if err := m.preflightStorage(id); err != nil {
		return m.failDownload(id, 0, err)
	}

	prov, err := provider.Validate(d.URL)
	if err != nil {
		return m.failDownload(id, 0, err)
	}

	if err := m.store.UpdateStatus(id, StatusInProgress, 0, ""); err != nil {
		return err
	}
	m.appendEvent(id, events.DownloadStarted, "Download started", nil)
	m.log.Info("download started", "download_id", id, "provider", prov)

	processIDRecorded := false
	lastProgress := 0
	hooks := extractor.Hooks{
		OnStart: func(pid int) {
			// Record the live process handle immediately so cancel can
			// reach it mid-run.
			if err := m.store.UpdateProcessID(id, pid); err != nil {
				m.log.Warn("record process id failed", "download_id", id, "error", err)
				return
			}
			processIDRecorded = true
		},
		OnProgress: func(p int) {
			lastProgress = p
			// Conditional write: a late callback after cancel is a no-op.
			if err := m.store.UpdateProgress(id, p); err != nil {
				m.log.Warn("progress update failed", "download_id", id, "error", err)
			}
			m.maybeLogProgress(id, p)
		},
	}

	result, err := m.runner.Execute(ctx, d.URL, prov, hooks)
	if err != nil {
		return m.failDownload(id, lastProgress, err)
	}

	if !processIDRecorded {
		if err := m.store.UpdateProcessID(id, result.ProcessID); err != nil {
			m.log.Warn("record process id failed", "download_id", id, "error", err)
		}
	}

	if d.MediaID == nil {
		if err := m.linkMetadata(ctx, d, false); err != nil {
			m.log.Warn("metadata link failed", "download_id", id, "error", err)
		}
	}

	// Cancel may have won the race while the subprocess was exiting; the
	// cancelled status must not be overwritten.
	if cancelled, err := m.observedCancel(id); err != nil || cancelled {
		return err
	}

	if err := m.store.Complete(id, result.FilePath); err != nil {
		return err
	}
	m.appendEvent(id, events.DownloadCompleted, "Download completed", map[string]any{"file_path": result.FilePath})
	m.log.Info("download completed", "download_id", id, "file_path", result.FilePath)
	return nil
}

// preflightStorage verifies the temp dir has enough free space before a
// subprocess is spawned.
func (m *Manager) preflightStorage(id int64) error {
	ok, err := m.storage.HasAtLeast(m.cfg.TempDir, m.cfg.MinStorageGB)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	available, err := m.storage.AvailableGB(m.cfg.TempDir)
	if err != nil {
		m.log.Warn("storage availability read failed", "error", err)
	}
	m.appendEvent(id, events.StorageLow,
		fmt.Sprintf("Insufficient storage: %d GB available, %d GB required", available, m.cfg.MinStorageGB),
		map[string]any{"availableGB": available, "requiredGB": m.cfg.MinStorageGB})
	return fmt.Errorf("%w: %d GB available, %d GB required", ErrInsufficientStorage, available, m.cfg.MinStorageGB)
}

// failDownload persists the failed terminal state unless cancel already
// won, then re-raises the cause for the worker's error counter.
func (m *Manager) failDownload(id int64, progress int, cause error) error {
	if cancelled, err := m.observedCancel(id); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	if err := m.store.UpdateStatus(id, StatusFailed, progress, cause.Error()); err != nil {
		m.log.Error("persist failed state", "download_id", id, "error", err)
	}
	m.appendEvent(id, events.DownloadFailed, "Download failed", map[string]any{"error": cause.Error()})
	m.log.Warn("download failed", "download_id", id, "error", cause)
	return cause
}

// observedCancel reports whether the download was cancelled underneath a
// running Process call.
func (m *Manager) observedCancel(id int64) (bool, error) {
	fresh, err := m.store.Fresh().Get(id)
	if err != nil {
		return false, err
	}
	return fresh.Status == StatusCancelled, nil
}

// maybeLogProgress appends a download:progress event when progress moved
// at least the configured threshold since the last logged value, or on
// completion.
func (m *Manager) maybeLogProgress(id int64, p int) {
	m.mu.Lock()
	last := m.lastLogged[id]
	if p-last < m.cfg.ProgressLogThreshold && p != 100 {
		m.mu.Unlock()
		return
	}
	m.lastLogged[id] = p
	m.mu.Unlock()

	m.appendEvent(id, events.DownloadProgress, fmt.Sprintf("Progress: %d%%", p), map[string]any{"progress": p})
}

func (m *Manager) clearProgressState(id int64) {
	m.mu.Lock()
	delete(m.lastLogged, id)
	m.mu.Unlock()
}

// GetStatus returns a download and, when linked, its media projection.
func (m *Manager) GetStatus(id int64) (*Download, *media.Media, error) {
	d, err := m.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if d.MediaID == nil {
		return d, nil, nil
	}
	rec, err := m.media.Get(*d.MediaID)
	if err != nil {
		// Dangling link after media deletion is tolerated.
		m.log.Debug("linked media missing", "download_id", id, "media_id", *d.MediaID)
		return d, nil, nil
	}
	return d, rec, nil
}

// List returns a page of downloads plus the matching total.
func (m *Manager) List(status *Status, page, pageSize int) ([]*Download, int, error) {
	if pageSize < 1 || pageSize > maxPageSize {
		return nil, 0, fmt.Errorf("%w: page size %d", ErrBadPagination, pageSize)
	}
	if page < 1 {
		page = 1
	}

	list, err := m.store.List(status, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if status != nil {
		total, err = m.store.CountByStatus(*status)
	} else {
		total, err = m.store.Count()
	}
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Logs returns a page of lifecycle events for one download.
func (m *Manager) Logs(id int64, page, limit int) ([]events.Entry, int, error) {
	if page < 1 || limit < 1 || limit > maxPageSize {
		return nil, 0, fmt.Errorf("%w: page %d limit %d", ErrBadPagination, page, limit)
	}
	if _, err := m.store.Get(id); err != nil {
		return nil, 0, err
	}

	entries, err := m.events.ForDownload(id, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := m.events.CountForDownload(id)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Cancel stops an active download. A live subprocess is force-killed
// best-effort; the terminal status is always cancelled, never failed.
func (m *Manager) Cancel(id int64) error {
	d, err := m.store.Fresh().Get(id)
	if err != nil {
		return err
	}
	if !d.Active() {
		return fmt.Errorf("%w: %s", ErrInvalidState, d.Status)
	}

	if d.Status == StatusInProgress && d.ProcessID != nil {
		if err := m.runner.Cancel(*d.ProcessID); err != nil {
			m.log.Warn("kill extractor failed", "download_id", id, "pid", *d.ProcessID, "error", err)
		}
	}

	if err := m.store.UpdateStatus(id, StatusCancelled, d.Progress, "Cancelled by user"); err != nil {
		return err
	}
	m.appendEvent(id, events.DownloadCancelled, "Download cancelled", nil)
	m.log.Info("download cancelled", "download_id", id)
	return nil
}

// Retry re-queues a failed or cancelled download from scratch.
func (m *Manager) Retry(id int64) error {
	d, err := m.store.Fresh().Get(id)
	if err != nil {
		return err
	}
	if d.Status != StatusFailed && d.Status != StatusCancelled {
		return fmt.Errorf("%w: %s", ErrInvalidState, d.Status)
	}
	if err := m.store.UpdateStatus(id, StatusPending, 0, ""); err != nil {
		return err
	}
	m.log.Info("download requeued", "download_id", id)
	return nil
}

// MoveToDestination relocates a completed download's output under the
// destination root, preserving its path relative to the temp dir.
func (m *Manager) MoveToDestination(id int64) (string, error) {
	d, err := m.store.Fresh().Get(id)
	if err != nil {
		return "", err
	}
	if d.Status != StatusCompleted {
		return "", fmt.Errorf("%w: %s", ErrInvalidState, d.Status)
	}
	if d.FilePath == nil || *d.FilePath == "" {
		return "", fmt.Errorf("%w: no file path", ErrInvalidState)
	}
	if _, err := os.Stat(*d.FilePath); err != nil {
		return "", fmt.Errorf("%w: output missing: %v", ErrInvalidState, err)
	}

	rel, err := filepath.Rel(m.cfg.TempDir, *d.FilePath)
	if err != nil || rel == "." {
		rel = filepath.Base(*d.FilePath)
	}
	dest := filepath.Join(m.cfg.DestDir, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}
	if err := os.Rename(*d.FilePath, dest); err != nil {
		return "", fmt.Errorf("move download %d: %w", id, err)
	}
	if err := m.store.UpdateFilePath(id, dest); err != nil {
		return "", err
	}
	m.log.Info("download moved", "download_id", id, "dest", dest)
	return dest, nil
}

// GetMedia returns one media record.
func (m *Manager) GetMedia(id int64) (*media.Media, error) {
	return m.media.Get(id)
}

// UpdateMediaMetadata applies a bounded metadata edit.
func (m *Manager) UpdateMediaMetadata(id int64, u media.MetadataUpdate) error {
	return m.media.UpdateMetadata(id, u)
}

// CleanupResult summarizes one orphan-cleanup pass.
type CleanupResult struct {
	DownloadsDeleted int `json:"downloads_deleted"`
	MediaDeleted     int `json:"media_deleted"`
	FilesDeleted     int `json:"files_deleted"`
}

// CleanupOrphanedFiles removes downloads past the retention window
// together with their on-disk output, then prunes unreferenced media.
// Individual failures are logged and skipped.
func (m *Manager) CleanupOrphanedFiles(retentionDays int) (CleanupResult, error) {
	var result CleanupResult

	old, err := m.store.OldCompleted(retentionDays)
	if err != nil {
		return result, err
	}
	for _, d := range old {
		if d.FilePath != nil && *d.FilePath != "" {
			if _, err := os.Stat(*d.FilePath); err == nil {
				if err := os.RemoveAll(*d.FilePath); err != nil {
					m.log.Warn("remove download output failed", "download_id", d.ID, "path", *d.FilePath, "error", err)
				} else {
					result.FilesDeleted++
				}
			}
		}
		if err := m.store.Delete(d.ID); err != nil {
			m.log.Warn("delete old download failed", "download_id", d.ID, "error", err)
			continue
		}
		result.DownloadsDeleted++
	}

	orphans, err := m.media.ListOrphaned()
	if err != nil {
		return result, err
	}
	for _, rec := range orphans {
		if err := m.media.Delete(rec.ID); err != nil {
			m.log.Warn("delete orphaned media failed", "media_id", rec.ID, "error", err)
			continue
		}
		result.MediaDeleted++
	}

	m.log.Info("cleanup pass finished",
		"downloads_deleted", result.DownloadsDeleted,
		"media_deleted", result.MediaDeleted,
		"files_deleted", result.FilesDeleted)
	return result, nil
}

// CleanupOldLogs removes lifecycle events past the log retention window.
func (m *Manager) CleanupOldLogs(retentionDays int) (int64, error) {
	return m.events.Prune(retentionDays)
}

// MarkStalled fails in-progress downloads whose started_at is older than
// the stall timeout.
func (m *Manager) MarkStalled(timeout time.Duration) (int, error) {
	stalled, err := m.store.StalledInProgress(timeout)
	if err != nil {
		return 0, err
	}

	minutes := int(timeout.Minutes())
	count := 0
	for _, d := range stalled {
		msg := fmt.Sprintf("Download stalled after %d minutes", minutes)
		if err := m.store.UpdateStatus(d.ID, StatusFailed, d.Progress, msg); err != nil {
			m.log.Warn("mark stalled failed", "download_id", d.ID, "error", err)
			continue
		}
		m.appendEvent(d.ID, events.DownloadStalled, msg, nil)
		m.log.Warn("download stalled", "download_id", d.ID, "started_at", d.StartedAt)
		count++
	}
	return count, nil
}

// appendEvent records a lifecycle event; log persistence failures never
// interrupt the lifecycle itself.
func (m *Manager) appendEvent(downloadID int64, typ events.Type, message string, metadata map[string]any) {
	if _, err := m.events.Append(downloadID, typ, message, metadata); err != nil {
		m.log.Warn("append event failed", "download_id", downloadID, "type", typ, "error", err)
	}
}
