// Package redistest provides an in-memory stand-in for the redis commands
// used by the local stores.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type Fake struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration

	// GetErrs forces Get on a key to fail with the given error.
	GetErrs map[string]error
	// SetErr forces every Set to fail.
	SetErr error
}

func New() *Fake {
	return &Fake{
		data:    make(map[string]string),
		ttls:    make(map[string]time.Duration),
		GetErrs: make(map[string]error),
	}
}

func (f *Fake) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return redis.NewStringResult("", err)
	}
	if err, ok := f.GetErrs[key]; ok {
		return redis.NewStringResult("", err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *Fake) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return redis.NewStatusResult("", err)
	}
	if f.SetErr != nil {
		return redis.NewStatusResult("", f.SetErr)
	}
	f.data[key] = stringify(value)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *Fake) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return redis.NewBoolResult(false, err)
	}
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = stringify(value)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			delete(f.ttls, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

// Value returns the raw stored string for assertions.
func (f *Fake) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

// TTL returns the expiration passed when key was last written.
func (f *Fake) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
