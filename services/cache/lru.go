package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUService implements CacheService in process with a bounded LRU
type LRUService struct {
	items *lru.Cache[string, lruEntry]
	now   func() time.Time
}

// NewLRUService creates an in-process cache holding at most size keys
func NewLRUService(size int) (*LRUService, error) {
	items, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRUService{items: items, now: time.Now}, nil
}

// Get retrieves a value, treating expired entries as missing
func (l *LRUService) Get(key string) ([]byte, error) {
	entry, ok := l.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !l.now().Before(entry.expiresAt) {
		l.items.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value. A zero expiration never expires.
func (l *LRUService) Set(key string, value []byte, expiration time.Duration) error {
	entry := lruEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = l.now().Add(expiration)
	}
	l.items.Add(key, entry)
	return nil
}

// Delete removes a value
func (l *LRUService) Delete(key string) error {
	l.items.Remove(key)
	return nil
}

// Len returns the number of stored keys, expired ones included
func (l *LRUService) Len() int {
	return l.items.Len()
}
