// Package config loads the tasktwin.json configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "tasktwin.json"

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultPort is the default server port.
	DefaultPort = 8080
)

// Config is the complete tasktwin.json configuration.
type Config struct {
	// Host is the listen host.
	Host string `json:"host,omitempty"`

	// Port is the listen port.
	Port int `json:"port,omitempty"`

	// Store configures where authorization rows live.
	Store StoreConfig `json:"store,omitempty"`

	// Cache configures the authorization cache backend.
	Cache CacheConfig `json:"cache,omitempty"`

	// Auth configures the resolution timeouts.
	Auth AuthConfig `json:"auth,omitempty"`
}

// StoreConfig selects the authorization store.
type StoreConfig struct {
	// Mode is "local" (serve and authorize from this process) or "rest"
	// (query a PostgREST-style API).
	Mode string `json:"mode,omitempty"`

	// URL is the REST store base URL, required in rest mode.
	URL string `json:"url,omitempty"`

	// APIKey is the bearer token for the REST store.
	APIKey string `json:"api_key,omitempty"`
}

// CacheConfig selects the cache KV backend.
type CacheConfig struct {
	// Backend is "memory", "file", or "s3".
	Backend string `json:"backend,omitempty"`

	// Dir is the cache directory in file mode.
	Dir string `json:"dir,omitempty"`

	// Bucket and Prefix locate the slot in s3 mode.
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`

	// Region is the bucket's AWS region, s3 mode only.
	Region string `json:"region,omitempty"`

	// TTLMinutes overrides the 30-minute entry lifetime.
	TTLMinutes int `json:"ttl_minutes,omitempty"`
}

// AuthConfig overrides the auth machine's timeouts. Zero values keep
// the defaults.
type AuthConfig struct {
	BootstrapTimeoutSeconds int `json:"bootstrap_timeout_seconds,omitempty"`
	ResolveTimeoutSeconds   int `json:"resolve_timeout_seconds,omitempty"`
	RetryDelayMillis        int `json:"retry_delay_millis,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Host:  DefaultHost,
		Port:  DefaultPort,
		Store: StoreConfig{Mode: "local"},
		Cache: CacheConfig{Backend: "memory"},
	}
}

// Load reads path, falling back to defaults when the file is absent.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigFileName
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path as indented JSON.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations that cannot be served.
func (c *Config) Validate() error {
	switch c.Store.Mode {
	case "", "local":
	case "rest":
		if c.Store.URL == "" {
			return fmt.Errorf("config: store.url is required in rest mode")
		}
	default:
		return fmt.Errorf("config: unknown store.mode %q", c.Store.Mode)
	}

	switch c.Cache.Backend {
	case "", "memory":
	case "file":
		if c.Cache.Dir == "" {
			return fmt.Errorf("config: cache.dir is required for the file backend")
		}
	case "s3":
		if c.Cache.Bucket == "" {
			return fmt.Errorf("config: cache.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown cache.backend %q", c.Cache.Backend)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheTTL returns the configured TTL, or zero when the default applies.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}
