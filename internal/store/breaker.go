package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore guards a remote store with a circuit breaker. Lookups that
// miss are not counted as failures.
type BreakerStore struct {
	next RunStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next with a breaker that opens after threshold
// consecutive failures and retries after openTimeout
func NewBreakerStore(name string, next RunStore, threshold uint32, openTimeout time.Duration) *BreakerStore {
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrDuplicateRun)
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the breaker state ("closed", "half-open", "open")
func (b *BreakerStore) State() string { return b.cb.State().String() }

func (b *BreakerStore) Save(ctx context.Context, rec RunRecord) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Save(ctx, rec)
	})
	return err
}

func (b *BreakerStore) Get(ctx context.Context, id string) (RunRecord, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, id)
	})
	if err != nil {
		return RunRecord{}, err
	}
	return out.(RunRecord), nil
}

func (b *BreakerStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.List(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return out.([]RunRecord), nil
}

func (b *BreakerStore) Close() error { return b.next.Close() }
