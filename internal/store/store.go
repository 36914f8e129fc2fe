// Package store persists trajectory run records.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sawpanic/mesohops/internal/hops"
)

var (
	// ErrRunNotFound is returned when no record exists for an id
	ErrRunNotFound = errors.New("run not found")
	// ErrDuplicateRun is returned when a record id is saved twice
	ErrDuplicateRun = errors.New("duplicate run")
)

// RunRecord is the persisted account of one initialize + propagate call
type RunRecord struct {
	ID         string           `json:"id" db:"id"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	Kinds      []string         `json:"kinds"`
	Initial    []hops.Amplitude `json:"initial"`
	Result     int              `json:"result" db:"result"`
	DurationMS float64          `json:"duration_ms" db:"duration_ms"`
}

// RunStore persists and retrieves run records
type RunStore interface {
	Save(ctx context.Context, rec RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	// List returns at most limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

func sortNewestFirst(recs []RunRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

func truncate(recs []RunRecord, limit int) []RunRecord {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
