package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/scoutmcp/config"
	"sjsage522/scoutmcp/internal"
	"sjsage522/scoutmcp/internal/learning"
	"sjsage522/scoutmcp/logger"
	"sjsage522/scoutmcp/services/cache"
	"sjsage522/scoutmcp/services/publisher"
	"sjsage522/scoutmcp/services/worker"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(os.Stderr)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.LoadConfig()
	cfg.RedisAddr = ""
	cfg.MemcacheAddr = ""
	cfg.ProxyServers = nil
	cfg.ErrorStore = "file"
	cfg.ErrorStorePath = filepath.Join(t.TempDir(), "data", "common_errors.json")
	return cfg
}

func TestInitializeServicesWithoutBackends(t *testing.T) {
	cfg := testConfig(t)

	deps, err := initializeServices(context.Background(), &cfg)
	require.NoError(t, err)
	defer deps.Close()

	assert.IsType(t, &cache.LRUService{}, deps.Cache)
	assert.Equal(t, publisher.NopPublisher{}, deps.Publisher)
	assert.Nil(t, deps.Proxy)
	assert.Nil(t, deps.Redis)
	assert.NotNil(t, deps.Metrics)
}

func TestNewCacheFallsBackToLRU(t *testing.T) {
	cfg := testConfig(t)
	cfg.MemcacheAddr = "127.0.0.1:1"

	c, err := newCache(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.LRUService{}, c)

	require.NoError(t, cache.Block(c, "www.mercadolibre.com.mx", time.Minute))
	assert.True(t, cache.IsBlocked(c, "www.mercadolibre.com.mx"))
}

func TestNewErrorStore(t *testing.T) {
	cfg := testConfig(t)
	deps := &internal.Dependencies{}

	store, err := newErrorStore(&cfg, deps)
	require.NoError(t, err)
	assert.IsType(t, &learning.FileStore{}, store)

	cfg.ErrorStore = "redis"
	_, err = newErrorStore(&cfg, deps)
	assert.Error(t, err)
}

// TestErrorsSurviveRestart captures an error, runs maintenance and reloads
// the file store as a restarted server would
func TestErrorsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	deps, err := initializeServices(ctx, &cfg)
	require.NoError(t, err)
	defer deps.Close()

	store, err := newErrorStore(&cfg, deps)
	require.NoError(t, err)
	lm, err := learning.NewManager(ctx, store, learning.WithPublisher(deps.Publisher), learning.WithMetrics(deps.Metrics))
	require.NoError(t, err)

	id := lm.CaptureError(ctx, assert.AnError, "extract_products", map[string]interface{}{"page_type": "search_results"}, "laptop")
	require.NotEqual(t, learning.UnknownErrorID, id)

	worker.NewWorker(lm, deps.Publisher, deps.Proxy, cfg.ErrorRetentionDays, time.Hour).RunOnce(ctx)
	require.NoError(t, lm.Close())

	reopened, err := newErrorStore(&cfg, deps)
	require.NoError(t, err)
	restarted, err := learning.NewManager(ctx, reopened)
	require.NoError(t, err)

	pattern, ok := restarted.Pattern(id)
	require.True(t, ok)
	assert.Equal(t, "extract_products", pattern.ToolName)
	assert.Equal(t, "laptop", pattern.QueryContext)
}
