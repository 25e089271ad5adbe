// Package cache provides a persistent key-value cache with TTL support,
// backed by Badger.
package cache

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store is a durable TTL cache. Values are opaque bytes; callers own
// serialization. Safe for concurrent readers and writers.
type Store struct {
	db *badger.DB

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// Stats holds cache performance counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Keys      int   `json:"keys"`
}

// envelope wraps a cached value with its absolute expiry (ms since epoch).
// The expiry is carried in the value so Cleanup can count removals; the
// Badger entry TTL is set as well so dead entries cannot outlive a sweep.
type envelope struct {
	Value  []byte `json:"v"`
	Expiry int64  `json:"exp"`
}

// Open opens or creates a cache store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a non-durable store. Test use only.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory cache store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set stores a value with expiry = now + ttl, replacing any existing entry.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value, Expiry: time.Now().Add(ttl).UnixMilli()}
	buf, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), buf).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("set cache entry %q: %w", key, err)
	}
	s.sets.Add(1)
	return nil
}

// Get returns the value for key if present and unexpired. Expired or
// undecodable entries are deleted and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	switch {
	case err == badger.ErrKeyNotFound:
		s.misses.Add(1)
		return nil, false
	case err != nil:
		// Corrupt entry: drop it rather than serve garbage.
		s.evict(key)
		s.misses.Add(1)
		return nil, false
	}

	if time.Now().UnixMilli() >= env.Expiry {
		s.evict(key)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return env.Value, true
}

// Delete removes a single entry.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}
	return nil
}

// Clear removes all entries.
func (s *Store) Clear() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Cleanup removes all expired entries and returns how many were deleted.
func (s *Store) Cleanup() (int, error) {
	now := time.Now().UnixMilli()
	var expired []string

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			var env envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				expired = append(expired, key)
				continue
			}
			if now >= env.Expiry {
				expired = append(expired, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache: %w", err)
	}

	count := 0
	for _, key := range expired {
		if err := s.Delete(key); err != nil {
			continue
		}
		count++
	}
	s.evictions.Add(int64(count))
	return count, nil
}

// Stats returns cache counters and the current key count.
func (s *Store) Stats() Stats {
	keys := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys++
		}
		return nil
	})
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Sets:      s.sets.Load(),
		Evictions: s.evictions.Load(),
		Keys:      keys,
	}
}

func (s *Store) evict(key string) {
	if err := s.Delete(key); err == nil {
		s.evictions.Add(1)
	}
}

// GetOrLoad returns the cached value for key, or invokes load, caches the
// result for ttl and returns it. Cache failures degrade to a direct load.
func GetOrLoad[T any](s *Store, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var out T
	if buf, ok := s.Get(key); ok {
		if err := json.Unmarshal(buf, &out); err == nil {
			return out, nil
		}
		// Undecodable cached value: fall through to the loader.
		_ = s.Delete(key)
	}

	out, err := load()
	if err != nil {
		return out, err
	}
	if buf, err := json.Marshal(out); err == nil {
		_ = s.Set(key, buf, ttl)
	}
	return out, nil
}
