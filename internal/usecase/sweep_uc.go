package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain/ports/repository"
)

// Compile-time check
var _ SweepUseCase = (*sweepUC)(nil)

// SweepResult summarizes one retention pass.
type SweepResult struct {
	// Swept counts job records removed.
	Swept int
	// Orphaned counts artifact deletions that failed; the blobs stay behind.
	Orphaned int
}

// SweepUseCase reclaims completed jobs past their retention window.
type SweepUseCase interface {
	// SweepExpired deletes artifacts and records of expired completed jobs.
	SweepExpired(ctx context.Context) (SweepResult, error)
}

type sweepUC struct {
	jobs      repository.JobRepository
	publisher ArtifactPublisher
	log       *zerolog.Logger
}

func NewSweepUseCase(jobs repository.JobRepository, publisher ArtifactPublisher, logger *zerolog.Logger) *sweepUC {
	l := logger.With().Str("component", "SweepUC").Logger()
	return &sweepUC{jobs: jobs, publisher: publisher, log: &l}
}

func (u *sweepUC) SweepExpired(ctx context.Context) (SweepResult, error) {
	expired, err := u.jobs.ListExpiredCompleted(ctx, repository.NoTX, time.Now())
	if err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	for _, job := range expired {
		for _, seg := range job.Segments {
			for _, key := range []string{seg.ClipKey, seg.ThumbKey} {
				if key == "" {
					continue
				}
				if err := u.publisher.Remove(ctx, key); err != nil {
					// An orphaned blob is accepted over blocking the sweep;
					// the record still goes away below.
					res.Orphaned++
					u.log.Warn().Err(err).Str("job_id", job.ID).Str("key", key).Msg("artifact delete failed, blob orphaned")
				}
			}
		}
		if err := u.jobs.Delete(ctx, repository.NoTX, job.ID); err != nil {
			u.log.Error().Err(err).Str("job_id", job.ID).Msg("job record delete failed")
			continue
		}
		res.Swept++
	}
	return res, nil
}
