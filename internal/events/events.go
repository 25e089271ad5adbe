// Package events records per-download lifecycle events.
package events

import "time"

// Type enumerates download lifecycle event kinds.
type Type string

const (
	DownloadEnqueued  Type = "download:enqueued"
	DownloadStarted   Type = "download:started"
	DownloadProgress  Type = "download:progress"
	DownloadCompleted Type = "download:completed"
	DownloadFailed    Type = "download:failed"
	DownloadCancelled Type = "download:cancelled"
	DownloadStalled   Type = "download:stalled"
	StorageLow        Type = "storage:low"
	MetadataFetching  Type = "metadata:fetching"
	MetadataFound     Type = "metadata:found"
)

var validTypes = map[Type]bool{
	DownloadEnqueued:  true,
	DownloadStarted:   true,
	DownloadProgress:  true,
	DownloadCompleted: true,
	DownloadFailed:    true,
	DownloadCancelled: true,
	DownloadStalled:   true,
	StorageLow:        true,
	MetadataFetching:  true,
	MetadataFound:     true,
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	return validTypes[t]
}

// Entry is one persisted lifecycle event.
type Entry struct {
	ID         int64          `json:"id"`
	DownloadID int64          `json:"download_id"`
	Type       Type           `json:"event_type"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
