// Package engine solves batches of quote records. Each record is solved
// independently; per-record failures are reported as data and never abort the batch.
package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/implied-vol/internal/data"
	"github.com/contactkeval/implied-vol/internal/logger"
	"github.com/contactkeval/implied-vol/internal/pricing"
)

// Config for a Runner.
type Config struct {
	Workers int                  `mapstructure:"workers" json:"workers"` // 0 = GOMAXPROCS
	Solver  pricing.SolverConfig `mapstructure:"solver" json:"solver"`
}

// Status classifies an Outcome.
type Status string

const (
	StatusSolved     Status = "solved"
	StatusNoSolution Status = "no_solution"
	StatusInvalid    Status = "invalid"
)

// Outcome is the result for one record. Err is set only for invalid input.
type Outcome struct {
	Record  data.Record
	Result  pricing.Result
	Err     error
	Elapsed time.Duration
}

// Status reports how the record ended.
func (o Outcome) Status() Status {
	switch {
	case o.Err != nil:
		return StatusInvalid
	case o.Result.Converged:
		return StatusSolved
	}
	return StatusNoSolution
}

// ImpliedVol returns the solved volatility and true, or 0 and false when there is none.
func (o Outcome) ImpliedVol() (float64, bool) {
	if o.Status() != StatusSolved {
		return 0, false
	}
	return o.Result.Vol, true
}

// Observer is notified of every outcome, from worker goroutines.
type Observer interface {
	Observe(o Outcome)
}

// IterationStats summarizes solver iterations over the solved records.
type IterationStats struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
	P99  float64 `json:"p99"`
	Max  int     `json:"max"`
}

// Summary aggregates a run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Source     string         `json:"source,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	Elapsed    time.Duration  `json:"elapsed_ns"`
	Total      int            `json:"total"`
	Solved     int            `json:"solved"`
	NoSolution int            `json:"no_solution"`
	Invalid    int            `json:"invalid"`
	Iterations IterationStats `json:"iterations"`
}

// Runner fans records out over a bounded worker pool.
type Runner struct {
	solver   *pricing.Solver
	workers  int
	observer Observer
}

// Option customizes a Runner.
type Option func(*Runner)

// WithObserver registers o to receive every outcome.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// NewRunner builds a runner from cfg.
func NewRunner(cfg Config, opts ...Option) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	r := &Runner{
		solver:  pricing.NewSolver(cfg.Solver),
		workers: workers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Solver exposes the runner's solver, e.g. for single-quote requests.
func (r *Runner) Solver() *pricing.Solver {
	return r.solver
}

// RunSource reads all records from src and solves them.
func (r *Runner) RunSource(ctx context.Context, src data.Source) ([]Outcome, Summary, error) {
	records, err := src.Records(ctx)
	if err != nil {
		return nil, Summary{}, err
	}
	outcomes, summary, err := r.Run(ctx, records)
	summary.Source = src.Name()
	return outcomes, summary, err
}

// Run solves records and returns one outcome per record, in input order.
// Only context cancellation produces an error.
func (r *Runner) Run(ctx context.Context, records []data.Record) ([]Outcome, Summary, error) {
	summary := Summary{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger.Infof("run %s: solving %d records with %d workers", summary.RunID, len(records), r.workers)

	outcomes := make([]Outcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range records {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			// each goroutine owns outcomes[i]; nothing else is shared
			outcomes[i] = r.solveOne(records[i])
			if r.observer != nil {
				r.observer.Observe(outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, summary, err
	}

	summarize(&summary, outcomes)
	logger.Infof(
		"run %s: %d solved, %d no solution, %d invalid in %v",
		summary.RunID, summary.Solved, summary.NoSolution, summary.Invalid, summary.Elapsed,
	)
	return outcomes, summary, nil
}

func (r *Runner) solveOne(rec data.Record) Outcome {
	start := time.Now()
	out := Outcome{Record: rec, Err: rec.Err}
	if out.Err == nil {
		out.Result, out.Err = r.solver.Solve(rec.Model, rec.Quote)
	}
	out.Elapsed = time.Since(start)

	switch out.Status() {
	case StatusInvalid:
		logger.Debugf("id=%s invalid: %v", rec.ID, out.Err)
	case StatusNoSolution:
		logger.Debugf("id=%s no solution: %v (last estimate %.8g after %d iterations)",
			rec.ID, out.Result.Reason, out.Result.Vol, out.Result.Iterations)
	default:
		logger.Tracef("id=%s vol=%.10g iterations=%d", rec.ID, out.Result.Vol, out.Result.Iterations)
	}
	return out
}

func summarize(s *Summary, outcomes []Outcome) {
	s.Total = len(outcomes)
	h := gohistogram.NewHistogram(50)
	for _, o := range outcomes {
		switch o.Status() {
		case StatusSolved:
			s.Solved++
			h.Add(float64(o.Result.Iterations))
			if o.Result.Iterations > s.Iterations.Max {
				s.Iterations.Max = o.Result.Iterations
			}
		case StatusNoSolution:
			s.NoSolution++
		case StatusInvalid:
			s.Invalid++
		}
	}
	if s.Solved > 0 {
		s.Iterations.Mean = h.Mean()
		s.Iterations.P50 = h.Quantile(0.5)
		s.Iterations.P90 = h.Quantile(0.9)
		s.Iterations.P99 = h.Quantile(0.99)
	}
	s.Elapsed = time.Since(s.StartedAt)
}
