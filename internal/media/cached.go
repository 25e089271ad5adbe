package media

import (
	"fmt"
	"time"

	"github.com/vmunix/audiarr/internal/cache"
)

// mediaTTL bounds staleness of cached media reads. Media rarely changes
// after import, so the window is generous.
const mediaTTL = 5 * time.Minute

// CachedStore decorates Store with read-through TTL caching. Writes pass
// through untouched; invalidation is purely TTL-based.
type CachedStore struct {
	*Store
	cache *cache.Store
}

// NewCachedStore wraps a store with the media read cache.
func NewCachedStore(store *Store, c *cache.Store) *CachedStore {
	return &CachedStore{Store: store, cache: c}
}

// Get is the cached variant of Store.Get.
func (s *CachedStore) Get(id int64) (*Media, error) {
	key := fmt.Sprintf("media:get:%d", id)
	return cache.GetOrLoad(s.cache, key, mediaTTL, func() (*Media, error) {
		return s.Store.Get(id)
	})
}

// GetByProviderID is the cached variant of Store.GetByProviderID.
func (s *CachedStore) GetByProviderID(prov, providerID string) (*Media, error) {
	key := fmt.Sprintf("media:provider:%s:%s", prov, providerID)
	return cache.GetOrLoad(s.cache, key, mediaTTL, func() (*Media, error) {
		return s.Store.GetByProviderID(prov, providerID)
	})
}

// List is the cached variant of Store.List.
func (s *CachedStore) List() ([]*Media, error) {
	return cache.GetOrLoad(s.cache, "media:list", mediaTTL, s.Store.List)
}

// Count is the cached variant of Store.Count.
func (s *CachedStore) Count() (int, error) {
	return cache.GetOrLoad(s.cache, "media:count", mediaTTL, s.Store.Count)
}
