package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/s-rangarajan/festicart/internal/redis"
)

type Reader interface {
	ReadCartWithContext(context.Context, string) (Cart, error)
}

type RedisReader struct {
	client redis.Cmdable
}

func NewRedisReader(client redis.Cmdable) *RedisReader {
	return &RedisReader{
		client: client,
	}
}

// ReadCartWithContext returns the cart saved under key, or an empty cart when
// nothing was saved yet.
func (r *RedisReader) ReadCartWithContext(ctx context.Context, key string) (Cart, error) {
	serializedData, err := r.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return Cart{}, fmt.Errorf("error getting cart from redis: %w", err)
	}

	cart := NewCart()
	if err == redis.Nil {
		return cart, nil
	}

	if err := json.Unmarshal([]byte(serializedData), &cart); err != nil {
		return Cart{}, fmt.Errorf("error unmarshaling cart from redis: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []Item{}
	}

	return cart, nil
}
