package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig configures the Redis token bucket in front of the API.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	AuthCapacity   int // bucket size for login, register and refresh
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func init() {
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_CAPACITY", 60)
	viper.SetDefault("RATE_LIMIT_AUTH_CAPACITY", 10)
	viper.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	viper.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1s")
	viper.SetDefault("RATE_LIMIT_TTL", "10m")
	viper.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")
	viper.SetDefault("RATE_LIMIT_PREFIX", "rl")
	viper.SetDefault("RATE_LIMIT_DEBUG", false)
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to
// usable values.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        viper.GetBool("RATE_LIMIT_ENABLED"),
		Capacity:       viper.GetInt("RATE_LIMIT_CAPACITY"),
		AuthCapacity:   viper.GetInt("RATE_LIMIT_AUTH_CAPACITY"),
		RefillTokens:   viper.GetInt("RATE_LIMIT_REFILL_TOKENS"),
		RefillInterval: viper.GetDuration("RATE_LIMIT_REFILL_INTERVAL"),
		TTL:            viper.GetDuration("RATE_LIMIT_TTL"),
		KeyStrategy:    viper.GetString("RATE_LIMIT_KEY_STRATEGY"),
		Prefix:         viper.GetString("RATE_LIMIT_PREFIX"),
		Debug:          viper.GetBool("RATE_LIMIT_DEBUG"),
	}
	if b := viper.GetInt("RATE_LIMIT_BURST"); b > 0 {
		cfg.Capacity = b
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.AuthCapacity < 1 || cfg.AuthCapacity > cfg.Capacity {
		cfg.AuthCapacity = cfg.Capacity
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
