package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps records as JSON values with a sorted-set index on creation time
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Addr    string
	DB      int
	Prefix  string
	TTL     time.Duration
	Timeout time.Duration
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newRedisStore(rdb, opts), nil
}

func newRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		now:     time.Now,
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) indexKey() string { return s.prefix + "index" }

func (s *RedisStore) Save(ctx context.Context, rec RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if !ok {
		return ErrDuplicateRun
	}

	member := &redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID}
	if err := s.client.ZAdd(ctx, s.indexKey(), member).Err(); err != nil {
		// An unindexed value would block every retry with ErrDuplicateRun
		if delErr := s.client.Del(ctx, s.key(rec.ID)).Err(); delErr != nil {
			return fmt.Errorf("redis index: %w (cleanup failed: %v)", err, delErr)
		}
		return fmt.Errorf("redis index: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse run %s: %w", id, err)
	}
	return rec, nil
}

// List walks the index newest first until limit live records are found.
// Index entries older than the TTL, or whose value is gone, are pruned on the way.
func (s *RedisStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.ttl > 0 {
		cutoff := strconv.FormatInt(s.now().Add(-s.ttl).UnixMilli(), 10)
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+cutoff).Err(); err != nil {
			return nil, fmt.Errorf("redis index prune: %w", err)
		}
	}

	recs := []RunRecord{}
	start := int64(0)
	for {
		stop := int64(-1)
		if limit > 0 {
			stop = start + int64(limit-len(recs)) - 1
		}
		ids, err := s.client.ZRevRange(ctx, s.indexKey(), start, stop).Result()
		if err != nil {
			return nil, fmt.Errorf("redis index: %w", err)
		}
		if len(ids) == 0 {
			return recs, nil
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.key(id)
		}
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}

		var stale []interface{}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				stale = append(stale, ids[i])
				continue
			}
			var rec RunRecord
			if err := json.Unmarshal([]byte(str), &rec); err != nil {
				return nil, fmt.Errorf("failed to parse run %s: %w", ids[i], err)
			}
			recs = append(recs, rec)
		}

		if len(stale) > 0 {
			if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
				return nil, fmt.Errorf("redis index prune: %w", err)
			}
		}

		if limit <= 0 || len(recs) >= limit || int64(len(ids)) < stop-start+1 {
			return recs, nil
		}
		// Pruned entries shift the ranks of everything after them
		start += int64(len(ids) - len(stale))
	}
}

func (s *RedisStore) Close() error { return s.client.Close() }
