package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Transport   string
	HTTPAddr    string
	MetricsAddr string

	// Browser configuration
	BrowserEngine  string
	Headless       bool
	BrowserTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	HumanDelays    bool
	ScreenshotDir  string

	// Marketplace configuration
	BaseURL     string
	ProfilePath string

	// Proxy configuration
	ProxyServers  []string
	ProxyUsername string
	ProxyPassword string

	// Error learning configuration
	ErrorStore          string
	ErrorStorePath      string
	ErrorRetentionDays  int
	MaintenanceInterval time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Cache configuration
	MemcacheAddr string
	CacheSize    int
	BlockTime    time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	timeoutMs, _ := strconv.Atoi(getEnv("BROWSER_TIMEOUT_MS", "60000"))
	maxRetries, _ := strconv.Atoi(getEnv("BROWSER_MAX_RETRIES", "3"))
	retryDelay, _ := strconv.Atoi(getEnv("BROWSER_RETRY_DELAY_SECONDS", "2"))
	retentionDays, _ := strconv.Atoi(getEnv("ERROR_RETENTION_DAYS", "30"))
	maintenance, _ := strconv.Atoi(getEnv("MAINTENANCE_INTERVAL_SECONDS", "3600"))
	cacheSize, _ := strconv.Atoi(getEnv("CACHE_SIZE", "256"))
	blockSeconds, _ := strconv.Atoi(getEnv("BLOCK_SECONDS", "300"))

	return Config{
		Transport:            getEnv("SCOUT_TRANSPORT", "stdio"),
		HTTPAddr:             getEnv("SCOUT_HTTP_ADDR", ":8000"),
		MetricsAddr:          getEnv("SCOUT_METRICS_ADDR", ""),
		BrowserEngine:        getEnv("BROWSER_ENGINE", "playwright"),
		Headless:             getEnvBool("BROWSER_HEADLESS", true),
		BrowserTimeout:       time.Duration(timeoutMs) * time.Millisecond,
		MaxRetries:           maxRetries,
		RetryDelay:           time.Duration(retryDelay) * time.Second,
		HumanDelays:          getEnvBool("BROWSER_HUMAN_DELAYS", true),
		ScreenshotDir:        getEnv("SCREENSHOT_DIR", "screenshots"),
		BaseURL:              getEnv("MARKETPLACE_BASE_URL", "https://www.mercadolibre.com.mx"),
		ProfilePath:          getEnv("MARKETPLACE_PROFILE", ""),
		ProxyServers:         splitList(getEnv("PROXY_SERVERS", "")),
		ProxyUsername:        getEnv("PROXY_USERNAME", ""),
		ProxyPassword:        getEnv("PROXY_PASSWORD", ""),
		ErrorStore:           getEnv("ERROR_STORE", "file"),
		ErrorStorePath:       getEnv("ERROR_STORE_PATH", "data/common_errors.json"),
		ErrorRetentionDays:   retentionDays,
		MaintenanceInterval:  time.Duration(maintenance) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "scout:errors"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		CacheSize:            cacheSize,
		BlockTime:            time.Duration(blockSeconds) * time.Second,
		Environment:          getEnv("SCOUT_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("transport must be stdio or http, got %q", c.Transport)
	}
	if c.Transport == "http" && c.HTTPAddr == "" {
		return fmt.Errorf("http transport requires SCOUT_HTTP_ADDR")
	}

	switch c.BrowserEngine {
	case "playwright", "chromedp", "static":
	default:
		return fmt.Errorf("browser engine must be playwright, chromedp or static, got %q", c.BrowserEngine)
	}
	if c.BrowserTimeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid marketplace base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("marketplace base URL must include a host")
	}

	switch c.ErrorStore {
	case "file":
		if c.ErrorStorePath == "" {
			return fmt.Errorf("file error store requires ERROR_STORE_PATH")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis error store requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("error store must be file or redis, got %q", c.ErrorStore)
	}
	if c.ErrorRetentionDays <= 0 {
		return fmt.Errorf("error retention days must be positive")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance interval must be positive")
	}
	if c.RedisAddr != "" && c.RedisStreamCount <= 0 {
		return fmt.Errorf("redis stream count must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
