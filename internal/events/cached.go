package events

import (
	"fmt"
	"time"

	"github.com/vmunix/audiarr/internal/cache"
)

// logTTL bounds staleness of cached log reads.
const logTTL = 10 * time.Second

// CachedLog decorates Log with read-through TTL caching on its read
// paths. Append and Prune pass through untouched.
type CachedLog struct {
	*Log
	cache *cache.Store
}

// NewCachedLog wraps an event log with the read cache.
func NewCachedLog(log *Log, c *cache.Store) *CachedLog {
	return &CachedLog{Log: log, cache: c}
}

// ForDownload is the cached variant of Log.ForDownload.
func (l *CachedLog) ForDownload(downloadID int64, page, pageSize int) ([]Entry, error) {
	key := fmt.Sprintf("logs:download:%d:%d:%d", downloadID, page, pageSize)
	return cache.GetOrLoad(l.cache, key, logTTL, func() ([]Entry, error) {
		return l.Log.ForDownload(downloadID, page, pageSize)
	})
}

// CountForDownload is the cached variant of Log.CountForDownload.
func (l *CachedLog) CountForDownload(downloadID int64) (int, error) {
	key := fmt.Sprintf("logs:count:%d", downloadID)
	return cache.GetOrLoad(l.cache, key, logTTL, func() (int, error) {
		return l.Log.CountForDownload(downloadID)
	})
}
