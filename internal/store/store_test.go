package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/mesohops/internal/config"
	"github.com/sawpanic/mesohops/internal/hops"
)

var baseTime = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id string, offset time.Duration) RunRecord {
	return RunRecord{
		ID:         id,
		CreatedAt:  baseTime.Add(offset),
		Kinds:      []string{"linear"},
		Initial:    []hops.Amplitude{{Re: 1}, {Im: 0.5}},
		Result:     0,
		DurationMS: 1.5,
	}
}

// exerciseStore checks the behavior every RunStore shares
func exerciseStore(t *testing.T, s RunStore) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	first := testRecord("run-a", 0)
	second := testRecord("run-b", time.Minute)
	third := testRecord("run-c", 2*time.Minute)
	for _, rec := range []RunRecord{second, first, third} {
		require.NoError(t, s.Save(ctx, rec))
	}

	assert.ErrorIs(t, s.Save(ctx, first), ErrDuplicateRun)

	got, err := s.Get(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, second.Initial, got.Initial)
	assert.Equal(t, second.Kinds, got.Kinds)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, ids(all))

	latest, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c", "run-b"}, ids(latest))

	assert.NoError(t, s.Close())
}

func ids(recs []RunRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, s.Save(context.Background(), testRecord(id, 0)), id)
	}
}

func TestFileStore_CorruptRecordSkippedInList(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), testRecord("run-a", 0)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644))

	_, err = s.Get(context.Background(), "bad")
	assert.ErrorContains(t, err, "failed to parse")

	recs, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a"}, ids(recs))
}

func TestFileStore_NonFiniteAmplitudes(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	rec := testRecord("run-inf", 0)
	rec.Initial = []hops.Amplitude{{Re: math.Inf(1), Im: math.NaN()}}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "run-inf")
	require.NoError(t, err)
	require.Len(t, got.Initial, 1)
	assert.True(t, math.IsInf(got.Initial[0].Re, 1))
	assert.True(t, math.IsNaN(got.Initial[0].Im))
}

func TestFileStore_ConcurrentDuplicateSave(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord("run-a", 0)
			rec.Result = i
			errs[i] = s.Save(context.Background(), rec)
		}(i)
	}
	wg.Wait()

	saved := 0
	for _, err := range errs {
		if err == nil {
			saved++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateRun)
		}
	}
	assert.Equal(t, 1, saved)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultRunConfig()
	cfg.Store.Backend = config.StoreMemory
	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.Store.Backend = config.StoreFile
	cfg.Store.Dir = t.TempDir()
	s, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	cfg.Store.Backend = "tape"
	_, err = Open(ctx, cfg)
	assert.ErrorContains(t, err, "unknown store backend")
}
