package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRedisStore(ttl time.Duration) (*RedisStore, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return newRedisStore(db, RedisOptions{Prefix: "runs:", TTL: ttl, Timeout: time.Second}), mock
}

func TestRedisStore_Save(t *testing.T) {
	ctx := context.Background()
	rec := testRecord("run-a", 0)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	t.Run("stores value and index", func(t *testing.T) {
		s, mock := newMockRedisStore(time.Hour)
		mock.ExpectSetNX("runs:run-a", data, time.Hour).SetVal(true)
		mock.ExpectZAdd("runs:index", &redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: "run-a"}).SetVal(1)

		require.NoError(t, s.Save(ctx, rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing key is duplicate", func(t *testing.T) {
		s, mock := newMockRedisStore(time.Hour)
		mock.ExpectSetNX("runs:run-a", data, time.Hour).SetVal(false)

		assert.ErrorIs(t, s.Save(ctx, rec), ErrDuplicateRun)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("index failure removes value so retry succeeds", func(t *testing.T) {
		s, mock := newMockRedisStore(time.Hour)
		member := &redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: "run-a"}

		mock.ExpectSetNX("runs:run-a", data, time.Hour).SetVal(true)
		mock.ExpectZAdd("runs:index", member).SetErr(errors.New("OOM"))
		mock.ExpectDel("runs:run-a").SetVal(1)
		assert.ErrorContains(t, s.Save(ctx, rec), "redis index: OOM")

		mock.ExpectSetNX("runs:run-a", data, time.Hour).SetVal(true)
		mock.ExpectZAdd("runs:index", member).SetVal(1)
		require.NoError(t, s.Save(ctx, rec))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("server error", func(t *testing.T) {
		s, mock := newMockRedisStore(time.Hour)
		mock.ExpectSetNX("runs:run-a", data, time.Hour).SetErr(errors.New("READONLY"))

		assert.ErrorContains(t, s.Save(ctx, rec), "redis set")
	})
}

func TestRedisStore_Get(t *testing.T) {
	ctx := context.Background()
	rec := testRecord("run-a", 0)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	s, mock := newMockRedisStore(0)

	mock.ExpectGet("runs:run-a").SetVal(string(data))
	got, err := s.Get(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Initial, got.Initial)

	mock.ExpectGet("runs:missing").RedisNil()
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	mock.ExpectGet("runs:broken").SetVal("{")
	_, err = s.Get(ctx, "broken")
	assert.ErrorContains(t, err, "failed to parse run")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_List(t *testing.T) {
	ctx := context.Background()
	newer, err := json.Marshal(testRecord("run-b", time.Minute))
	require.NoError(t, err)
	older, err := json.Marshal(testRecord("run-a", 0))
	require.NoError(t, err)

	s, mock := newMockRedisStore(0)

	mock.ExpectZRevRange("runs:index", 0, 2).SetVal([]string{"run-b", "run-x", "run-a"})
	// run-x value is gone, its index entry is dropped
	mock.ExpectMGet("runs:run-b", "runs:run-x", "runs:run-a").SetVal([]interface{}{string(newer), nil, string(older)})
	mock.ExpectZRem("runs:index", "run-x").SetVal(1)
	mock.ExpectZRevRange("runs:index", 2, 2).SetVal([]string{})

	recs, err := s.List(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-a"}, ids(recs))

	mock.ExpectZRevRange("runs:index", 0, -1).SetVal([]string{})
	recs, err = s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_List_SkipsExpiredHead(t *testing.T) {
	ctx := context.Background()
	older, err := json.Marshal(testRecord("run-a", 0))
	require.NoError(t, err)

	s, mock := newMockRedisStore(time.Hour)
	now := baseTime.Add(30 * time.Minute)
	s.now = func() time.Time { return now }
	cutoff := strconv.FormatInt(now.Add(-time.Hour).UnixMilli(), 10)

	mock.ExpectZRemRangeByScore("runs:index", "-inf", "("+cutoff).SetVal(0)
	mock.ExpectZRevRange("runs:index", 0, 0).SetVal([]string{"run-x"})
	mock.ExpectMGet("runs:run-x").SetVal([]interface{}{nil})
	mock.ExpectZRem("runs:index", "run-x").SetVal(1)
	mock.ExpectZRevRange("runs:index", 0, 0).SetVal([]string{"run-a"})
	mock.ExpectMGet("runs:run-a").SetVal([]interface{}{string(older)})

	recs, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a"}, ids(recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}
