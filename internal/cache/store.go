// AngelaMos | 2026
// store.go

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

type Options struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// Store is a fail-open JSON cache over Redis. Backend errors are logged and
// reported as a miss, a false or a zero; they never reach the caller.
//
// Get, Set, Delete, Exists and ClearPattern are no-ops while the cache is
// disabled. Increment, Expire and TTL always talk to Redis because the rate
// limiter counts through them.
type Store struct {
	rdb    redis.Cmdable
	opts   Options
	logger *slog.Logger
}

func NewStore(rdb redis.Cmdable, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		rdb:    rdb,
		opts:   opts,
		logger: logger.With("component", "cache"),
	}
}

func (s *Store) Enabled() bool {
	return s.opts.Enabled
}

// Get decodes the value at key into dest and reports whether it was found.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if !s.opts.Enabled {
		return false
	}

	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.logger.Warn("cache get failed", "key", key, "error", err)
		return false
	}

	switch d := dest.(type) {
	case *string:
		*d = raw
	case *[]byte:
		*d = []byte(raw)
	default:
		if err := json.Unmarshal([]byte(raw), dest); err != nil {
			s.logger.Warn("cache decode failed", "key", key, "error", err)
			return false
		}
	}

	return true
}

// Set stores value under key. Scalars are written as-is and everything else
// as JSON. A zero ttl falls back to the default TTL and a zero default means
// no expiry.
func (s *Store) Set(
	ctx context.Context,
	key string,
	value any,
	ttl time.Duration,
) bool {
	if !s.opts.Enabled {
		return false
	}

	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	data, err := encode(value)
	if err != nil {
		s.logger.Warn("cache encode failed", "key", key, "error", err)
		return false
	}

	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
		return false
	}

	return true
}

func (s *Store) Delete(ctx context.Context, key string) bool {
	if !s.opts.Enabled {
		return false
	}

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("cache delete failed", "key", key, "error", err)
		return false
	}

	return true
}

func (s *Store) Exists(ctx context.Context, key string) bool {
	if !s.opts.Enabled {
		return false
	}

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn("cache exists failed", "key", key, "error", err)
		return false
	}

	return n > 0
}

// ClearPattern deletes every key matching the glob pattern and returns how
// many were removed. Keys deleted before a failure stay deleted.
func (s *Store) ClearPattern(ctx context.Context, pattern string) int64 {
	if !s.opts.Enabled {
		return 0
	}

	var (
		cursor  uint64
		deleted int64
	)

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			s.logger.Warn("cache scan failed", "pattern", pattern, "error", err)
			return deleted
		}

		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				s.logger.Warn("cache clear failed", "pattern", pattern, "error", err)
				return deleted
			}
			deleted += n
		}

		if next == 0 {
			return deleted
		}
		cursor = next
	}
}

// Increment adds amount to the counter at key and returns the new value, or
// zero if Redis is unreachable.
func (s *Store) Increment(ctx context.Context, key string, amount int64) int64 {
	n, err := s.rdb.IncrBy(ctx, key, amount).Result()
	if err != nil {
		s.logger.Warn("cache increment failed", "key", key, "error", err)
		return 0
	}
	return n
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := s.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		s.logger.Warn("cache expire failed", "key", key, "error", err)
		return false
	}
	return ok
}

// TTL returns the remaining lifetime of key. Negative values follow Redis:
// -1 for a key without expiry and -2 for a missing key. Backend errors
// report -2.
func (s *Store) TTL(ctx context.Context, key string) time.Duration {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		s.logger.Warn("cache ttl failed", "key", key, "error", err)
		return -2
	}
	return d
}

func encode(value any) (any, error) {
	switch value.(type) {
	case string, []byte, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return value, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
