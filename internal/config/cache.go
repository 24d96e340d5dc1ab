package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CacheConfig defines settings for the public response cache.  When Enabled
// is false or no Redis client is configured, caching is disabled.  Only GET
// responses of the routes the cache is mounted on are stored; every event
// mutation purges the whole Prefix namespace.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func init() {
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_TTL", "30s")
	viper.SetDefault("CACHE_KEY_STRATEGY", "route_query")
	viper.SetDefault("CACHE_PREFIX", "evcache")
	viper.SetDefault("CACHE_MAX_BODY_BYTES", 1<<20)
}

// LoadCacheConfig builds a CacheConfig from CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      viper.GetBool("CACHE_ENABLED"),
		TTL:          viper.GetDuration("CACHE_TTL"),
		KeyStrategy:  strings.ToLower(viper.GetString("CACHE_KEY_STRATEGY")),
		Prefix:       viper.GetString("CACHE_PREFIX"),
		MaxBodyBytes: viper.GetInt("CACHE_MAX_BODY_BYTES"),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "evcache"
	}
	return cfg
}
