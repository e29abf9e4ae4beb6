package loadgen

import (
	"context"
	"time"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/ingestion"
	"github.com/jihwankim/resilience-core/pkg/reporting"
)

// Config parameterizes a load-generation run.
type Config struct {
	Rate     time.Duration // interval between generated records
	Duration time.Duration // total run length; 0 means run until ctx is cancelled
	Spec     RecordSpec
	Sources  []string
	Seed     int64
}

// Result tallies one Run's outcome.
type Result struct {
	Generated int
	Accepted  int
	Rejected  map[string]int
}

func newResult() Result {
	return Result{Rejected: make(map[string]int)}
}

// Runner drives synthetic ingestion.Records into a Pipeline at a fixed
// rate from a ticker-driven select loop that stops when ctx is cancelled
// or the configured duration elapses.
type Runner struct {
	pipeline *ingestion.Pipeline
	logger   *reporting.Logger
}

// NewRunner constructs a Runner over an already-started pipeline.
func NewRunner(pipeline *ingestion.Pipeline, logger *reporting.Logger) *Runner {
	return &Runner{pipeline: pipeline, logger: logger}
}

// Run generates and ingests records at cfg.Rate until cfg.Duration elapses
// or ctx is cancelled, whichever comes first.
func (r *Runner) Run(ctx context.Context, cfg Config) Result {
	if cfg.Rate <= 0 {
		cfg.Rate = 100 * time.Millisecond
	}
	sampler := NewSampler(cfg.Seed, cfg.Sources)
	result := newResult()

	var deadline <-chan time.Time
	if cfg.Duration > 0 {
		timer := time.NewTimer(cfg.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(cfg.Rate)
	defer ticker.Stop()

	base := time.Now()
	for {
		select {
		case <-ctx.Done():
			return result
		case <-deadline:
			return result
		case <-ticker.C:
			rec := sampler.Next(cfg.Spec, result.Generated, base.Add(time.Duration(result.Generated)*cfg.Rate))
			result.Generated++
			if err := r.pipeline.Ingest(rec); err != nil {
				result.Rejected[string(rerrors.KindOf(err))]++
				r.logger.Debug("loadgen record rejected", "reason", rerrors.KindOf(err), "source", rec.SourceID)
				continue
			}
			result.Accepted++
		}
	}
}
