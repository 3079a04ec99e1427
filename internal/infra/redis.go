package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// NewRedisClient connects to the Redis backing verification codes and
// idempotency records. clientName shows up in CLIENT LIST; settings in the
// url (pool size, timeouts) win over the defaults here.
func NewRedisClient(ctx context.Context, url, clientName string) (*redis.Client, error) {
	opt, err := redisOptions(url, clientName)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
	}

	return client, nil
}

func redisOptions(url, clientName string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = clientName
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = redisPingTimeout
	}
	return opt, nil
}
