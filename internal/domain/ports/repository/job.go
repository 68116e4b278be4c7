package repository

import (
	"context"
	"time"

	"clipforge/internal/domain/model"
)

// JobRepository persists clip jobs and their segments.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.ClipJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ClipJob, error)

	// FetchAndMarkDownloading claims the oldest pending job, transitions it
	// to downloading and returns it, or domain.ErrNotFound when the backlog
	// is empty. The claim is exclusive across concurrent instances.
	FetchAndMarkDownloading(ctx context.Context) (*model.ClipJob, error)

	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit int) ([]*model.ClipJob, error)

	// SaveSegment appends one produced segment row. Segments are written
	// exactly once and never updated.
	SaveSegment(ctx context.Context, tx Tx, jobID string, seg model.Segment) error

	// MarkRefunded flips the refunded flag and reports whether this call
	// performed the flip. A false return means the job was already refunded.
	MarkRefunded(ctx context.Context, tx Tx, jobID string) (bool, error)

	// ListExpiredCompleted returns completed jobs whose expiry is at or
	// before cutoff, segments included, for the retention sweep.
	ListExpiredCompleted(ctx context.Context, tx Tx, cutoff time.Time) ([]*model.ClipJob, error)

	Delete(ctx context.Context, tx Tx, jobID string) error
}
