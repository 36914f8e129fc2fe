package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runColumns = []string{"id", "created_at", "kinds", "initial", "result", "duration_ms"}

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newPostgresStore(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS mesohops_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	ctx := context.Background()
	rec := testRecord("run-a", 0)
	insert := regexp.QuoteMeta("INSERT INTO mesohops_runs")

	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(insert).
		WithArgs("run-a", rec.CreatedAt, sqlmock.AnyArg(), sqlmock.AnyArg(), 0, 1.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Save(ctx, rec))

	mock.ExpectExec(insert).WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, s.Save(ctx, rec), ErrDuplicateRun)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockPostgresStore(t)
	query := regexp.QuoteMeta("FROM mesohops_runs")

	mock.ExpectQuery(query).WithArgs("run-a").WillReturnRows(
		sqlmock.NewRows(runColumns).
			AddRow("run-a", baseTime, "{linear,adaptive}", []byte(`[{"re":1,"im":0}]`), 0, 1.5))

	got, err := s.Get(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "run-a", got.ID)
	assert.Equal(t, []string{"linear", "adaptive"}, got.Kinds)
	require.Len(t, got.Initial, 1)
	assert.Equal(t, 1.0, got.Initial[0].Re)
	assert.Equal(t, 1.5, got.DurationMS)

	mock.ExpectQuery(query).WithArgs("missing").WillReturnRows(sqlmock.NewRows(runColumns))
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).WithArgs(2).WillReturnRows(
		sqlmock.NewRows(runColumns).
			AddRow("run-b", baseTime.Add(time.Minute), "{}", []byte(`[]`), 0, 1.0).
			AddRow("run-a", baseTime, "{linear}", []byte(`null`), 0, 2.0))

	recs, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-a"}, ids(recs))
	assert.Nil(t, recs[1].Initial)

	assert.NoError(t, mock.ExpectationsWereMet())
}
