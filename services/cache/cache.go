package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache: miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// BlockKey returns the key used to mark a domain as blocked
func BlockKey(domain string) string {
	return "scout:block:" + domain
}

// IsBlocked reports whether domain has an active block key
func IsBlocked(c CacheService, domain string) bool {
	if c == nil {
		return false
	}
	_, err := c.Get(BlockKey(domain))
	return err == nil
}

// Block marks domain as blocked for d
func Block(c CacheService, domain string, d time.Duration) error {
	if c == nil || d <= 0 {
		return nil
	}
	return c.Set(BlockKey(domain), []byte("1"), d)
}
