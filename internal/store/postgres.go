package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/mesohops/internal/hops"
)

const createRunsTable = `
	CREATE TABLE IF NOT EXISTS mesohops_runs (
		id          TEXT PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL,
		kinds       TEXT[] NOT NULL DEFAULT '{}',
		initial     JSONB NOT NULL,
		result      INTEGER NOT NULL,
		duration_ms DOUBLE PRECISION NOT NULL
	)`

// PostgresStore keeps records in the mesohops_runs table
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

type runRow struct {
	ID         string         `db:"id"`
	CreatedAt  time.Time      `db:"created_at"`
	Kinds      pq.StringArray `db:"kinds"`
	Initial    []byte         `db:"initial"`
	Result     int            `db:"result"`
	DurationMS float64        `db:"duration_ms"`
}

// NewPostgresStore connects with the given DSN and ensures the schema exists
func NewPostgresStore(ctx context.Context, dsn string, timeout time.Duration) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	s := newPostgresStore(db, timeout)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

// EnsureSchema creates the runs table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	initial, err := json.Marshal(rec.Initial)
	if err != nil {
		return fmt.Errorf("failed to marshal initial state: %w", err)
	}

	query := `
		INSERT INTO mesohops_runs (id, created_at, kinds, initial, result, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.CreatedAt, pq.StringArray(rec.Kinds), initial, rec.Result, rec.DurationMS)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, rec.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row runRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, created_at, kinds, initial, result, duration_ms
		FROM mesohops_runs
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return row.record()
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, created_at, kinds, initial, result, duration_ms
		FROM mesohops_runs
		ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += `
		LIMIT $1`
		args = append(args, limit)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	recs := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (r runRow) record() (RunRecord, error) {
	var initial []hops.Amplitude
	if len(r.Initial) > 0 {
		if err := json.Unmarshal(r.Initial, &initial); err != nil {
			return RunRecord{}, fmt.Errorf("failed to parse initial state for %s: %w", r.ID, err)
		}
	}
	return RunRecord{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Kinds:      []string(r.Kinds),
		Initial:    initial,
		Result:     r.Result,
		DurationMS: r.DurationMS,
	}, nil
}
