package download

import (
	"fmt"
	"time"

	"github.com/vmunix/audiarr/internal/cache"
)

// downloadTTL bounds staleness of cached download reads. Downloads change
// often, so the window is short.
const downloadTTL = 5 * time.Second

// Repository is the persistence surface the manager and worker consume.
// Two implementations exist: the direct Store and CachedStore, a
// read-through TTL decorator.
type Repository interface {
	Create(d *Download) error
	Get(id int64) (*Download, error)
	// Fresh returns the undecorated store. Lifecycle guards re-read rows
	// through it: a terminal decision must never act on a cached row.
	Fresh() *Store
	NextPending() (*Download, error)
	ActiveByNormalizedURL(u string) (*Download, error)
	List(status *Status, page, pageSize int) ([]*Download, error)
	OldCompleted(days int) ([]*Download, error)
	StalledInProgress(timeout time.Duration) ([]*Download, error)
	Count() (int, error)
	CountByStatus(status Status) (int, error)
	UpdateStatus(id int64, status Status, progress int, errorMessage string) error
	UpdateProgress(id int64, progress int) error
	Complete(id int64, filePath string) error
	UpdateProcessID(id int64, processID int) error
	UpdateMediaID(id, mediaID int64) error
	UpdateFilePath(id int64, filePath string) error
	Delete(id int64) error
	DeleteAll() error
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*CachedStore)(nil)
)

// CachedStore decorates Store with read-through TTL caching. Writes pass
// through untouched; invalidation is purely TTL-based. NextPending,
// OldCompleted and StalledInProgress are never cached: worker scheduling
// depends on fresh reads.
type CachedStore struct {
	*Store
	cache *cache.Store
}

// NewCachedStore wraps a store with the download read cache.
func NewCachedStore(store *Store, c *cache.Store) *CachedStore {
	return &CachedStore{Store: store, cache: c}
}

// Get is the cached variant of Store.Get.
func (s *CachedStore) Get(id int64) (*Download, error) {
	key := fmt.Sprintf("download:get:%d", id)
	return cache.GetOrLoad(s.cache, key, downloadTTL, func() (*Download, error) {
		return s.Store.Get(id)
	})
}

// ActiveByNormalizedURL is cached; misses are never cached, so a fresh
// enqueue is always visible to the next duplicate check.
func (s *CachedStore) ActiveByNormalizedURL(u string) (*Download, error) {
	key := "download:active:" + u
	return cache.GetOrLoad(s.cache, key, downloadTTL, func() (*Download, error) {
		return s.Store.ActiveByNormalizedURL(u)
	})
}

// List is the cached variant of Store.List.
func (s *CachedStore) List(status *Status, page, pageSize int) ([]*Download, error) {
	st := "any"
	if status != nil {
		st = string(*status)
	}
	key := fmt.Sprintf("download:list:%s:%d:%d", st, page, pageSize)
	return cache.GetOrLoad(s.cache, key, downloadTTL, func() ([]*Download, error) {
		return s.Store.List(status, page, pageSize)
	})
}

// Count is the cached variant of Store.Count.
func (s *CachedStore) Count() (int, error) {
	return cache.GetOrLoad(s.cache, "download:count", downloadTTL, s.Store.Count)
}

// CountByStatus is the cached variant of Store.CountByStatus.
func (s *CachedStore) CountByStatus(status Status) (int, error) {
	key := "download:count:" + string(status)
	return cache.GetOrLoad(s.cache, key, downloadTTL, func() (int, error) {
		return s.Store.CountByStatus(status)
	})
}
