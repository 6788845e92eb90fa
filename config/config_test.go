package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "stdio", config.Transport)
	assert.Equal(t, "playwright", config.BrowserEngine)
	assert.True(t, config.Headless)
	assert.Equal(t, 60*time.Second, config.BrowserTimeout)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, "https://www.mercadolibre.com.mx", config.BaseURL)
	assert.Equal(t, "data/common_errors.json", config.ErrorStorePath)
	assert.Equal(t, 30, config.ErrorRetentionDays)
	assert.Empty(t, config.ProxyServers)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("SCOUT_TRANSPORT", "http")
	t.Setenv("SCOUT_HTTP_ADDR", ":9000")
	t.Setenv("BROWSER_ENGINE", "static")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_TIMEOUT_MS", "1500")
	t.Setenv("PROXY_SERVERS", "http://a:1, http://b:2 ,")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ERROR_STORE", "redis")

	config = LoadConfig()
	assert.Equal(t, "http", config.Transport)
	assert.Equal(t, ":9000", config.HTTPAddr)
	assert.Equal(t, "static", config.BrowserEngine)
	assert.False(t, config.Headless)
	assert.Equal(t, 1500*time.Millisecond, config.BrowserTimeout)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, config.ProxyServers)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 2, config.RedisDB)
	assert.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad transport", func(c *Config) { c.Transport = "grpc" }, "transport"},
		{"bad engine", func(c *Config) { c.BrowserEngine = "selenium" }, "browser engine"},
		{"no host", func(c *Config) { c.BaseURL = "/relative" }, "host"},
		{"redis store without addr", func(c *Config) { c.ErrorStore = "redis"; c.RedisAddr = "" }, "REDIS_ADDR"},
		{"zero timeout", func(c *Config) { c.BrowserTimeout = 0 }, "timeout"},
		{"zero retention", func(c *Config) { c.ErrorRetentionDays = 0 }, "retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
