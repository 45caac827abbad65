package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/logging"
	"nse-options-lab/internal/models"
	"nse-options-lab/internal/performance"
	"nse-options-lab/internal/resilience"
	"nse-options-lab/internal/store"
	"nse-options-lab/pkg/utils"
)

// DefaultLookaheadDays extends each job's snapshot window past month end so
// the 30 day expiry is covered.
const DefaultLookaheadDays = 60

// lookbackDays reaches into the previous month for the session before entry.
const lookbackDays = 7

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses YYYY-MM.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, errors.NewValidationError("month", s, "expected YYYY-MM")
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Next returns the following month.
func (m YearMonth) Next() YearMonth {
	if m.Month == time.December {
		return YearMonth{Year: m.Year + 1, Month: time.January}
	}
	return YearMonth{Year: m.Year, Month: m.Month + 1}
}

// After reports whether m is later than o.
func (m YearMonth) After(o YearMonth) bool {
	return m.Year > o.Year || (m.Year == o.Year && m.Month > o.Month)
}

// Job is one symbol-month.
type Job struct {
	Symbol string
	Month  YearMonth
	Index  bool
}

// Jobs enumerates every (symbol, month) in [from, to], ordered by symbol.
func Jobs(symbols []string, universe models.Universe, from, to YearMonth) []Job {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	var jobs []Job
	for _, sym := range sorted {
		for m := from; !m.After(to); m = m.Next() {
			jobs = append(jobs, Job{Symbol: sym, Month: m, Index: universe.IsIndex(sym)})
		}
	}
	return jobs
}

// RunnerConfig holds runner settings.
type RunnerConfig struct {
	Workers       int
	LookaheadDays int
	Retry         utils.RetryConfig
	// Breaker guards result writes across all workers.
	Breaker resilience.CircuitBreakerConfig
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Jobs      int           `json:"jobs"`
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Rejected  int64         `json:"rejected_writes"`
	Duration  time.Duration `json:"duration"`
}

// Runner executes jobs on a worker pool and persists each outcome.
type Runner struct {
	engine    *Engine
	snapshots store.SnapshotStore
	results   store.ResultStore
	breaker   *resilience.CircuitBreaker
	cfg       RunnerConfig
	logger    zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(engine *Engine, snapshots store.SnapshotStore, results store.ResultStore, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = DefaultLookaheadDays
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	cfg.Retry.Permanent = append(cfg.Retry.Permanent, errors.ErrInvalidInput, context.Canceled)
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig()
	}
	return &Runner{
		engine:    engine,
		snapshots: snapshots,
		results:   results,
		breaker:   resilience.NewCircuitBreaker("result-store", cfg.Breaker),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes every job. A failing job is logged and counted; the others
// still run. The error is non-nil only when the run could not proceed.
func (r *Runner) Run(ctx context.Context, jobs []Job) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{RunID: uuid.NewString(), Jobs: len(jobs)}
	logger := logging.WithRunID(r.logger, summary.RunID)
	rejectedBefore := r.breaker.Stats().Rejected

	var completed, skipped, failed atomic.Int64

	pool := performance.NewWorkerPool(ctx, r.cfg.Workers)
	pool.Start()

	for _, job := range jobs {
		job := job
		err := pool.Submit(func(ctx context.Context) {
			out, err := r.runJob(ctx, summary.RunID, job)
			if err != nil {
				failed.Add(1)
				jl := logging.WithSymbol(logger, job.Symbol)
				jl.Error().
					Err(err).
					Str("month", job.Month.String()).
					Msg("Job failed")
				return
			}
			if out.Result.Skipped() {
				skipped.Add(1)
			} else {
				completed.Add(1)
			}
			logging.LogBacktestResult(logger, &out.Result)
			for _, e := range out.Ledger {
				logging.LogHedge(logger, job.Symbol, e)
			}
		})
		if err != nil {
			pool.Cancel()
			return summary, fmt.Errorf("failed to submit job %s %s: %w", job.Symbol, job.Month, err)
		}
	}
	pool.Stop()
	poolStats := pool.Stats()

	summary.Completed = int(completed.Load())
	summary.Skipped = int(skipped.Load())
	summary.Failed = int(failed.Load())
	summary.Rejected = r.breaker.Stats().Rejected - rejectedBefore
	summary.Duration = time.Since(start)

	logger.Info().
		Int("jobs", summary.Jobs).
		Int("completed", summary.Completed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int64("rejected_writes", summary.Rejected).
		Uint64("tasks_done", poolStats.TasksDone).
		Dur("duration", summary.Duration).
		Msg("Backtest run finished")

	return summary, ctx.Err()
}

// RunJob executes and persists a single job.
func (r *Runner) RunJob(ctx context.Context, runID string, job Job) (Outcome, error) {
	return r.runJob(ctx, runID, job)
}

func (r *Runner) runJob(ctx context.Context, runID string, job Job) (Outcome, error) {
	from := models.MonthStart(job.Month.Year, job.Month.Month).AddDays(-lookbackDays)
	to := models.MonthEnd(job.Month.Year, job.Month.Month).AddDays(r.cfg.LookaheadDays)

	snaps, err := utils.RetryWithResult(ctx, r.cfg.Retry, func() ([]*models.MarketSnapshot, error) {
		return r.snapshots.GetSnapshots(ctx, job.Symbol, from, to)
	})
	if err != nil {
		return Outcome{}, errors.NewDataError("snapshot", job.Symbol, "load "+job.Month.String(), err)
	}

	out := r.engine.RunMonth(job.Symbol, job.Month.Year, job.Month.Month, job.Index, NewSeries(snaps))

	started := time.Now()
	err = r.breaker.Execute(ctx, func() error {
		return utils.Retry(ctx, r.cfg.Retry, func() error {
			return r.results.SaveResult(ctx, runID, &out.Result, out.Ledger)
		})
	})
	logging.LogStoreWrite(r.logger, "save_result", job.Symbol+"/"+job.Month.String(), len(out.Ledger)+1, time.Since(started), err)
	if err != nil {
		return out, err
	}
	return out, nil
}
