package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the redis connection shared by the index and limiter.
type Config struct {
	URL         string
	KeyPrefix   string
	RoomTTL     time.Duration
	RateLimit   int
	RateWindow  time.Duration
	PoolSize    int
	DialTimeout time.Duration
}

// Open parses cfg.URL, applies the pool settings and verifies the
// connection.
func Open(cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func roomKey(prefix, id string) string {
	return prefix + ":room:" + id
}

func roomSetKey(prefix string) string {
	return prefix + ":rooms"
}

func rateKey(prefix, ident string, window time.Duration) string {
	return prefix + ":rl:" + strconv.FormatInt(window.Milliseconds(), 10) + ":" + ident
}
