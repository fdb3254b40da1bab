// Package redis opens the shared Redis connection used for the geocode
// cache and the change stream.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"recruitment_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// New opens a client for cfg and pings it. It returns nil, nil when no
// Redis URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opts, err := Options(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Options parses a redis:// or rediss:// URL. tlsInsecure skips
// certificate verification for managed Redis with self-signed certs.
func Options(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if opts.TLSConfig != nil {
		clone := opts.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opts.TLSConfig = clone
	} else if tlsInsecure {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opts, nil
}
