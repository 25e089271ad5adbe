// Package worker drives the download queue: one FIFO processing loop
// plus periodic maintenance schedulers.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/audiarr/internal/download"
)

// Queue is the scheduling read the worker polls. It must bypass any read
// cache: a stale head would reprocess or skip queue entries.
type Queue interface {
	NextPending() (*download.Download, error)
}

// Processor runs downloads and maintenance on behalf of the worker.
type Processor interface {
	Process(ctx context.Context, id int64) error
	CleanupOrphanedFiles(retentionDays int) (download.CleanupResult, error)
	CleanupOldLogs(retentionDays int) (int64, error)
	MarkStalled(timeout time.Duration) (int, error)
}

// Config holds the worker's scheduling intervals and retention policy.
type Config struct {
	PollInterval         time.Duration
	CooldownInterval     time.Duration
	ErrorBackoff         time.Duration
	StalledCheckInterval time.Duration
	CleanupInterval      time.Duration
	StallTimeout         time.Duration
	CleanupRetentionDays int
	LogRetentionDays     int
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.CooldownInterval <= 0 {
		c.CooldownInterval = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	if c.StalledCheckInterval <= 0 {
		c.StalledCheckInterval = 5 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 7 * 24 * time.Hour
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = time.Hour
	}
	if c.CleanupRetentionDays <= 0 {
		c.CleanupRetentionDays = 7
	}
	if c.LogRetentionDays <= 0 {
		c.LogRetentionDays = 90
	}
}

// State is a snapshot of the worker's counters.
type State struct {
	IsRunning         bool       `json:"is_running"`
	CurrentDownloadID *int64     `json:"current_download_id,omitempty"`
	LastProcessedAt   *time.Time `json:"last_processed_at,omitempty"`
	ProcessedCount    int64      `json:"processed_count"`
	ErrorCount        int64      `json:"error_count"`
}

// Worker processes pending downloads strictly one at a time, FIFO.
type Worker struct {
	queue     Queue
	processor Processor
	cfg       Config
	log       *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a worker.
func New(queue Queue, processor Processor, cfg Config, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	cfg.applyDefaults()
	return &Worker{
		queue:     queue,
		processor: processor,
		cfg:       cfg,
		log:       log,
	}
}

// Run starts the queue loop and both maintenance schedulers. It blocks
// until the context is cancelled; in-flight work finishes first.
func (w *Worker) Run(ctx context.Context) error {
	w.setRunning(true)
	defer w.setRunning(false)
	w.log.Info("worker started",
		"poll_interval", w.cfg.PollInterval,
		"stall_timeout", w.cfg.StallTimeout)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.queueLoop(ctx) })
	g.Go(func() error { return w.stalledLoop(ctx) })
	g.Go(func() error { return w.cleanupLoop(ctx) })

	err := g.Wait()
	w.log.Info("worker stopped")
	return err
}

// State returns a copy of the worker's counters.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) queueLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		next, err := w.queue.NextPending()
		switch {
		case errors.Is(err, download.ErrNotFound):
			if !w.sleep(ctx, w.cfg.PollInterval) {
				return nil
			}
		case err != nil:
			w.log.Error("poll queue failed", "error", err)
			if !w.sleep(ctx, w.cfg.ErrorBackoff) {
				return nil
			}
		default:
			// A Process error lands in the row and the counters; the
			// cooldown between items is the same either way. ErrorBackoff
			// is reserved for failures of the loop itself.
			_ = w.processOne(ctx, next.ID)
			if !w.sleep(ctx, w.cfg.CooldownInterval) {
				return nil
			}
		}
	}
}

func (w *Worker) processOne(ctx context.Context, id int64) error {
	w.mu.Lock()
	w.state.CurrentDownloadID = &id
	w.mu.Unlock()

	err := w.processor.Process(ctx, id)

	now := time.Now()
	w.mu.Lock()
	w.state.CurrentDownloadID = nil
	w.state.LastProcessedAt = &now
	if err != nil {
		w.state.ErrorCount++
	} else {
		w.state.ProcessedCount++
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Warn("processing failed", "download_id", id, "error", err)
	}
	return err
}

// stalledLoop fails downloads stuck in progress past the stall timeout.
// Runs once at startup, then on its interval.
func (w *Worker) stalledLoop(ctx context.Context) error {
	w.checkStalled()

	ticker := time.NewTicker(w.cfg.StalledCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.checkStalled()
		}
	}
}

func (w *Worker) checkStalled() {
	n, err := w.processor.MarkStalled(w.cfg.StallTimeout)
	if err != nil {
		w.log.Error("stalled check failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Warn("stalled downloads failed", "count", n)
	}
}

// cleanupLoop removes old downloads, orphaned media and expired log
// entries. Runs once at startup, then on its interval.
func (w *Worker) cleanupLoop(ctx context.Context) error {
	w.runCleanup()

	ticker := time.NewTicker(w.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.runCleanup()
		}
	}
}

func (w *Worker) runCleanup() {
	if _, err := w.processor.CleanupOrphanedFiles(w.cfg.CleanupRetentionDays); err != nil {
		w.log.Error("cleanup failed", "error", err)
	}
	pruned, err := w.processor.CleanupOldLogs(w.cfg.LogRetentionDays)
	if err != nil {
		w.log.Error("log prune failed", "error", err)
		return
	}
	if pruned > 0 {
		w.log.Info("old log entries pruned", "count", pruned)
	}
}

func (w *Worker) setRunning(v bool) {
	w.mu.Lock()
	w.state.IsRunning = v
	w.mu.Unlock()
}

// sleep waits for d or until ctx is cancelled; it reports whether the
// caller should keep going.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
