package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/infra/metrics"
	"clipforge/internal/usecase"
)

// RetentionWorker periodically reclaims completed jobs past the retention
// window via the sweep use case.
type RetentionWorker struct {
	interval time.Duration
	sweepUC  usecase.SweepUseCase
	log      *zerolog.Logger
}

func NewRetentionWorker(interval time.Duration, sweepUC usecase.SweepUseCase, logger *zerolog.Logger) *RetentionWorker {
	l := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval: interval,
		sweepUC:  sweepUC,
		log:      &l,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			res, err := w.sweepUC.SweepExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("retention sweep error")
			}
			if res.Swept > 0 {
				metrics.AddJobsSwept(res.Swept)
				w.log.Info().Int("count", res.Swept).Msg("expired jobs swept")
			}
			if res.Orphaned > 0 {
				metrics.AddSweepDeleteFailures(res.Orphaned)
			}
		}
	}
}
