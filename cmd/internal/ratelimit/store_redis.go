package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "beta:rl:"

// RedisStore keeps counters in Redis as small JSON values with a TTL equal to the window.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix (default "beta:rl:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = p
		}
	}
}

// NewRedisStore wraps a go-redis client (single node, cluster or ring).
func NewRedisStore(rdb redis.Cmdable, opts ...RedisOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("ratelimit: nil redis client")
	}
	s := &RedisStore{rdb: rdb, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type redisCounter struct {
	Count         int   `json:"count"`
	WindowStartMS int64 `json:"window_start_ms"`
}

// Get reads the counter; a missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (Counter, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Counter{}, false, nil
		}
		return Counter{}, false, fmt.Errorf("ratelimit: redis get: %w", err)
	}
	c, err := decodeCounter(raw)
	if err != nil {
		return Counter{}, false, err
	}
	return c, true, nil
}

// Put writes the counter with ttl.
func (s *RedisStore) Put(ctx context.Context, key string, c Counter, ttl time.Duration) error {
	raw, err := encodeCounter(c)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis set: %w", err)
	}
	return nil
}

func encodeCounter(c Counter) ([]byte, error) {
	return json.Marshal(redisCounter{Count: c.Count, WindowStartMS: c.WindowStart.UnixMilli()})
}

func decodeCounter(raw []byte) (Counter, error) {
	var rc redisCounter
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Counter{}, fmt.Errorf("ratelimit: decode counter: %w", err)
	}
	return Counter{Count: rc.Count, WindowStart: time.UnixMilli(rc.WindowStartMS).UTC()}, nil
}
