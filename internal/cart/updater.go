package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/s-rangarajan/festicart/internal/redis"
)

var lockPollInterval = 10 * time.Millisecond

type Updater interface {
	UpdateCartWithContext(context.Context, string, func(Cart) Cart) error
}

type RedisUpdater struct {
	client redis.Cmdable
}

func NewRedisUpdater(client redis.Cmdable) *RedisUpdater {
	return &RedisUpdater{
		client: client,
	}
}

// UpdateCartWithContext applies updaterFunc to the cart stored under key while
// holding a lock on it. The lock lives at most until the context deadline, so
// a context without a deadline is refused.
func (r *RedisUpdater) UpdateCartWithContext(ctx context.Context, key string, updaterFunc func(Cart) Cart) error {
	token, err := r.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer r.release(key, token)

	cart := NewCart()
	serializedData, err := r.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("error getting existing cart from redis: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(serializedData), &cart); err != nil {
			return fmt.Errorf("error unmarshaling existing cart: %w", err)
		}
	}

	updated := updaterFunc(cart)
	if updated.Items == nil {
		updated.Items = []Item{}
	}

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("error marshaling cart: %w", err)
	}
	if err := r.client.Set(ctx, key, string(data), 0).Err(); err != nil {
		return fmt.Errorf("error saving cart: %w", err)
	}

	return nil
}

func (r *RedisUpdater) acquire(ctx context.Context, key string) (string, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return "", errors.New("error acquiring lock: context has no deadline")
	}

	token := uuid.NewV4().String()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ttl := time.Until(deadline)
		if ttl <= 0 {
			return "", fmt.Errorf("timed out waiting for lock on %s", key)
		}
		acquired, err := r.client.SetNX(ctx, lockingSemaphore(key), token, ttl).Result()
		if err != nil && ctx.Err() == nil {
			return "", fmt.Errorf("error acquiring lock: %w", err)
		}
		if acquired {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timed out waiting for lock on %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release runs on a fresh context so an expired caller context still frees the lock.
func (r *RedisUpdater) release(key, token string) {
	ctx, cancelFunc := context.WithTimeout(context.Background(), time.Second)
	defer cancelFunc()

	current, err := r.client.Get(ctx, lockingSemaphore(key)).Result()
	if err != nil || current != token {
		return
	}
	r.client.Del(ctx, lockingSemaphore(key))
}

func lockingSemaphore(key string) string {
	return key + ":lock"
}
