// Package config loads client configuration from a file and
// RESYNC_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full client configuration.
type Config struct {
	API   APIConfig   `mapstructure:"api"`
	Store StoreConfig `mapstructure:"store"`
	Cache CacheConfig `mapstructure:"cache"`
	Live  LiveConfig  `mapstructure:"live"`
}

// APIConfig configures the HTTP transport.
type APIConfig struct {
	// Endpoint is the remote API root.
	Endpoint string `mapstructure:"endpoint"`

	// Token is the bearer token, if the API requires one.
	Token string `mapstructure:"token"`
}

// StoreConfig configures the persistent local store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
}

// CacheConfig configures the query cache backend.
type CacheConfig struct {
	// RedisAddr enables the redis fanout backend when non-empty.
	RedisAddr string `mapstructure:"redis_addr"`

	// RedisDB is the redis database number.
	RedisDB int `mapstructure:"redis_db"`
}

// LiveConfig configures the server-push invalidation listener.
type LiveConfig struct {
	// Enabled turns the listener on.
	Enabled bool `mapstructure:"enabled"`

	// URL is the websocket endpoint for invalidation events.
	URL string `mapstructure:"url"`
}

// Load reads configuration from the given file path. An empty path
// falls back to resync.yaml in the working directory; a missing file is
// not an error, defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store.path", "resync.db")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("live.enabled", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("resync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields every client needs.
func (c *Config) Validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("api.endpoint is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Live.Enabled && c.Live.URL == "" {
		return fmt.Errorf("live.url is required when live.enabled is set")
	}
	return nil
}
