package config

// Redis backs the rate limiter and the public event-list cache.  If the
// server cannot be reached at startup NewRedisClient returns nil and
// callers degrade gracefully by disabling both features.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

func init() {
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
}

// NewRedisClient instantiates a Redis client.  Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port (take precedence over REDIS_ADDR)
//   REDIS_ADDR – host:port shorthand
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number
//   REDIS_TLS – enable TLS
// The returned client is nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	addr := viper.GetString("REDIS_ADDR")
	if host, port := viper.GetString("REDIS_HOST"), viper.GetString("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	var tlsConf *tls.Config
	if viper.GetBool("REDIS_TLS") {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  viper.GetString("REDIS_PASSWORD"),
		DB:        viper.GetInt("REDIS_DB"),
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
