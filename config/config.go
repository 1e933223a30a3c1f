package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Engine selects the page engine used to visit product pages.
const (
	EngineChrome = "chrome"
	EngineStatic = "static"
)

// Config holds pipeline configuration.
type Config struct {
	Concurrency        int           // parallel execution contexts (browser sessions)
	Engine             string        // chrome or static
	NavigationTimeout  time.Duration // bounded wait for page readiness
	FetchTimeout       time.Duration // per image byte fetch
	HostInterval       time.Duration // minimum spacing between byte fetches per host
	Fingerprint        string        // substring an image src must contain to be considered
	PerIdentifierDirs  bool          // {root}/{domain}/{id}/... instead of {root}/{domain}/...
	CacheSize          int           // resolve-result LRU entries
	ProgressBufferSize int
	UserAgent          string
	StorageRoot        string
	MetricsAddr        string
	Verbose            bool
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:        4,
		Engine:             EngineChrome,
		NavigationTimeout:  30 * time.Second,
		FetchTimeout:       20 * time.Second,
		HostInterval:       0,
		Fingerprint:        "",
		PerIdentifierDirs:  false,
		CacheSize:          256,
		ProgressBufferSize: 256,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		StorageRoot:        "",
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Engine != EngineChrome && c.Engine != EngineStatic {
		return fmt.Errorf("engine must be %s or %s", EngineChrome, EngineStatic)
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.HostInterval < 0 {
		return fmt.Errorf("host interval cannot be negative")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.ProgressBufferSize <= 0 {
		return fmt.Errorf("progress buffer size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
