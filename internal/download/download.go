// Package download manages the persistent download queue and tracks
// extractor progress.
package download

import (
	"time"
)

// Status tracks download state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Download represents one user request to fetch one URL.
type Download struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	NormalizedURL string     `json:"normalized_url"`
	MediaID       *int64     `json:"media_id,omitempty"`
	Status        Status     `json:"status"`
	Progress      int        `json:"progress"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	FilePath      *string    `json:"file_path,omitempty"`
	ProcessID     *int       `json:"process_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Active reports whether the download occupies the queue: pending or
// in progress.
func (d *Download) Active() bool {
	return d.Status == StatusPending || d.Status == StatusInProgress
}
