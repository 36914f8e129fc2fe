package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/mesohops/internal/hops"
	"github.com/sawpanic/mesohops/internal/metrics"
	"github.com/sawpanic/mesohops/internal/store"
)

// RunRequest describes one trajectory run
type RunRequest struct {
	Initial hops.WaveFunction
	Kinds   []string
}

// Runner initializes a trajectory, propagates it and records the run
type Runner struct {
	trajectory *hops.HopsTrajectory[hops.WaveFunction]
	store      store.RunStore
	metrics    *metrics.Registry
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// NewRunner wires a runner. metrics may be nil.
func NewRunner(s store.RunStore, m *metrics.Registry, logger zerolog.Logger) *Runner {
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Runner{
		trajectory: hops.NewHopsTrajectory[hops.WaveFunction](),
		store:      s,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Run executes one run and persists its record. Invalid kinds are returned
// as *hops.InvalidKindError and nothing is stored.
func (r *Runner) Run(ctx context.Context, req RunRequest) (store.RunRecord, error) {
	start := r.now()

	psi := r.trajectory.Initialize(req.Initial)
	r.metrics.Initializations.Inc()
	r.metrics.WaveFunctionDim.Set(float64(psi.Dim()))

	result, err := hops.Propagate(req.Kinds...)
	if err != nil {
		r.metrics.Propagations.WithLabelValues(metrics.ResultInvalidKind).Inc()
		r.logger.Warn().Err(err).Strs("kinds", req.Kinds).Msg("Propagation rejected")
		return store.RunRecord{}, err
	}

	if err := ctx.Err(); err != nil {
		return store.RunRecord{}, fmt.Errorf("run cancelled: %w", err)
	}

	rec := store.RunRecord{
		ID:        r.newID(),
		CreatedAt: start.UTC(),
		Kinds:     req.Kinds,
		Initial:   psi.Amplitudes(),
		Result:    result,
	}
	rec.DurationMS = float64(r.now().Sub(start).Microseconds()) / 1000.0

	if err := r.store.Save(ctx, rec); err != nil {
		r.metrics.Propagations.WithLabelValues(metrics.ResultStoreError).Inc()
		return store.RunRecord{}, fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}

	r.metrics.Propagations.WithLabelValues(metrics.ResultOK).Inc()
	r.metrics.RunDuration.Observe(r.now().Sub(start).Seconds())

	r.logger.Info().
		Str("run_id", rec.ID).
		Int("dim", psi.Dim()).
		Strs("kinds", req.Kinds).
		Int("result", result).
		Msg("Trajectory run completed")

	return rec, nil
}

// Get returns a stored run
func (r *Runner) Get(ctx context.Context, id string) (store.RunRecord, error) {
	return r.store.Get(ctx, id)
}

// Recent returns the newest runs
func (r *Runner) Recent(ctx context.Context, limit int) ([]store.RunRecord, error) {
	return r.store.List(ctx, limit)
}

// Metrics exposes the registry the runner records into
func (r *Runner) Metrics() *metrics.Registry { return r.metrics }
