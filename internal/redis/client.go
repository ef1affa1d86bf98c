package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/s-rangarajan/festicart/internal/config"
)

// Nil is returned by Get when a key is absent.
const Nil = redis.Nil

// Cmdable is the subset of redis commands the local stores rely on.
type Cmdable interface {
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, interface{}, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, interface{}, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// New opens a client from config and pings it within the dial timeout.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancelFunc := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancelFunc()

	client := redis.NewClient(opts)
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error setting up new redis client: %w", err)
	}

	return client, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}
