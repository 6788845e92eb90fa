package learning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "common_errors.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	m, err := NewManager(ctx, store)
	require.NoError(t, err)

	id := m.CaptureError(ctx, errors.New("selector .x not found"), "extract_products",
		map[string]interface{}{"page_type": "search_results"}, "laptop")
	m.CaptureError(ctx, errors.New("selector .x not found"), "extract_products",
		map[string]interface{}{"page_type": "search_results"}, "laptop")
	m.RecordSelector(ctx, "title", ".ui-search-item__title", true)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// a fresh store reads what the first one wrote
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	m2, err := NewManager(ctx, reopened)
	require.NoError(t, err)

	p, ok := m2.Pattern(id)
	require.True(t, ok)
	assert.Equal(t, 2, p.Frequency)
	assert.Equal(t, "search_results", p.PageType)
	assert.Equal(t, "laptop", p.QueryContext)

	r, ok := m2.Selector("title", ".ui-search-item__title")
	require.True(t, ok)
	assert.Equal(t, 1, r.Successes)

	require.NoError(t, reopened.DeletePatterns(ctx, []string{id}))
	data, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.Patterns)

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.Patterns)
	assert.NotNil(t, data.Selectors)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	store, err = NewFileStore(corrupt)
	require.NoError(t, err)
	_, err = store.Load(ctx)
	assert.Error(t, err)
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := &ErrorPattern{ErrorID: "abc", Frequency: 1, PreventionTips: []string{"a"}}
	require.NoError(t, store.SavePattern(ctx, p))
	p.Frequency = 99
	p.PreventionTips[0] = "changed"

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, data.Patterns["abc"].Frequency)
	assert.Equal(t, "a", data.Patterns["abc"].PreventionTips[0])
}

// This test requires a running redis instance
// If redis is not available, the test will be skipped
func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	store := NewRedisStore(client, "test_scout")
	require.NoError(t, client.Del(ctx, store.patternsKey, store.selectorsKey).Err())

	m, err := NewManager(ctx, store)
	require.NoError(t, err)
	id := m.CaptureError(ctx, errors.New("search box missing"), "search_products", nil, "tv")
	m.RecordSelector(ctx, "price", ".price", false)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, data.Patterns, id)
	assert.Equal(t, "search_products", data.Patterns[id].ToolName)
	assert.Len(t, data.Selectors, 1)

	require.NoError(t, store.DeletePatterns(ctx, []string{id}))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.Patterns)
}
