package internal

import (
	"github.com/redis/go-redis/v9"

	"sjsage522/scoutmcp/logger"
	"sjsage522/scoutmcp/services/cache"
	"sjsage522/scoutmcp/services/metrics"
	"sjsage522/scoutmcp/services/proxy"
	"sjsage522/scoutmcp/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Proxy     proxy.ProxyManager
	Metrics   *metrics.Metrics
	Redis     *redis.Client
}

// Close releases the connections held by the dependencies. The redis
// client, when set, is owned by the publisher.
func (d *Dependencies) Close() {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.Close(); err != nil {
		logger.LogError("publisher", err, "close failed")
	}
}
