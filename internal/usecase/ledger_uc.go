package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/adapter"
	"clipforge/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase is the only place credit balances change.
type LedgerUseCase interface {
	// DebitAndCreate reserves the job's credits and persists the job record
	// as one atomic pair: either both happen or neither does.
	DebitAndCreate(ctx context.Context, job *model.ClipJob) error

	// Refund returns a failed job's reserved credits exactly once; repeat
	// calls for the same job are no-ops.
	Refund(ctx context.Context, jobID string) error
}

const ownerLockTTL = 10 * time.Second

func ownerLockKey(ownerID string) string { return "lock:owner:" + ownerID }

type ledgerUC struct {
	users  repository.UserRepository
	jobs   repository.JobRepository
	tm     repository.TransactionManager
	locker adapter.Locker
	log    *zerolog.Logger
}

func NewLedgerUseCase(users repository.UserRepository, jobs repository.JobRepository, tm repository.TransactionManager, locker adapter.Locker, logger *zerolog.Logger) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{users: users, jobs: jobs, tm: tm, locker: locker, log: &l}
}

func (u *ledgerUC) DebitAndCreate(ctx context.Context, job *model.ClipJob) error {
	key := ownerLockKey(job.OwnerID)
	token, err := u.locker.TryLock(ctx, key, ownerLockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = u.locker.Unlock(ctx, key, token) }()

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.DebitCredits(ctx, tx, job.OwnerID, job.CreditsReserved); err != nil {
			return err
		}
		return u.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return err
	}

	u.log.Info().
		Str("job_id", job.ID).
		Str("owner_id", job.OwnerID).
		Int64("credits", job.CreditsReserved).
		Msg("credits reserved")
	return nil
}

func (u *ledgerUC) Refund(ctx context.Context, jobID string) error {
	var refunded int64

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		job, err := u.jobs.FindByID(ctx, tx, jobID)
		if err != nil {
			return err
		}

		flipped, err := u.jobs.MarkRefunded(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !flipped {
			// already refunded, nothing to do
			return nil
		}
		if err := u.users.CreditCredits(ctx, tx, job.OwnerID, job.CreditsReserved); err != nil {
			return err
		}
		refunded = job.CreditsReserved
		return nil
	})
	if err != nil {
		return err
	}

	if refunded > 0 {
		u.log.Info().Str("job_id", jobID).Int64("credits", refunded).Msg("credits refunded")
	}
	return nil
}
