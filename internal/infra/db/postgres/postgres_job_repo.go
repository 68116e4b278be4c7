package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"clipforge/internal/domain"
	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

// FetchAndMarkDownloading claims the oldest pending job under FOR UPDATE
// SKIP LOCKED so concurrent workers never pick the same job twice.
func (r *jobRepo) FetchAndMarkDownloading(ctx context.Context) (*model.ClipJob, error) {
	var job *model.ClipJob

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		row := ex.QueryRow(ctx, `
SELECT `+jobColumns+`
  FROM clip_jobs
 WHERE status = 'pending'
 ORDER BY created_at
 LIMIT 1
 FOR UPDATE SKIP LOCKED;`)

		claimed, err := scanJob(row)
		if err != nil {
			return err
		}
		if err := claimed.Transition(model.JobStatusDownloading); err != nil {
			return err
		}
		if err := r.Save(ctx, tx, claimed); err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Durations are stored as milliseconds.
const jobColumns = `
id, owner_id, source_url, title, source_duration_ms, status,
segment_count, segment_length_ms, overlay_text, credits_reserved,
refunded, failure_reason, created_at, completed_at, expires_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ClipJob) error {
	const q = `
INSERT INTO clip_jobs (
  id, owner_id, source_url, title, source_duration_ms, status,
  segment_count, segment_length_ms, overlay_text, credits_reserved,
  refunded, failure_reason, created_at, completed_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  source_duration_ms = EXCLUDED.source_duration_ms,
  status = EXCLUDED.status,
  failure_reason = EXCLUDED.failure_reason,
  completed_at = EXCLUDED.completed_at;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		job.ID, job.OwnerID, job.SourceURL, job.Title,
		job.SourceDuration.Milliseconds(), string(job.Status),
		job.SegmentCount, job.SegmentLength.Milliseconds(), job.OverlayText,
		job.CreditsReserved, job.Refunded, job.FailureReason,
		job.CreatedAt, job.CompletedAt, job.ExpiresAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ClipJob, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRow(ctx, `SELECT `+jobColumns+` FROM clip_jobs WHERE id = $1;`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadSegments(ctx, ex, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.ClipJob, error) {
	if limit <= 0 {
		limit = 20
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx,
		`SELECT `+jobColumns+` FROM clip_jobs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2;`,
		ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *jobRepo) SaveSegment(ctx context.Context, tx repository.Tx, jobID string, seg model.Segment) error {
	const q = `
INSERT INTO clip_segments (job_id, idx, start_ms, duration_ms, clip_key, thumb_key, overlay_text, byte_size)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, jobID, seg.Index,
		seg.Start.Milliseconds(), seg.Duration.Milliseconds(),
		seg.ClipKey, seg.ThumbKey, seg.OverlayText, seg.ByteSize)
	return err
}

// MarkRefunded flips the flag only when it is still unset; the conditional
// update is what makes refunds idempotent under concurrent failure handling.
func (r *jobRepo) MarkRefunded(ctx context.Context, tx repository.Tx, jobID string) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx,
		`UPDATE clip_jobs SET refunded = TRUE WHERE id = $1 AND NOT refunded;`, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) ListExpiredCompleted(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.ClipJob, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx,
		`SELECT `+jobColumns+` FROM clip_jobs WHERE status = 'completed' AND expires_at <= $1 ORDER BY expires_at;`,
		cutoff)
	if err != nil {
		return nil, err
	}
	jobs, err := scanJobs(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if err := r.loadSegments(ctx, ex, job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (r *jobRepo) Delete(ctx context.Context, tx repository.Tx, jobID string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, `DELETE FROM clip_segments WHERE job_id = $1;`, jobID); err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `DELETE FROM clip_jobs WHERE id = $1;`, jobID)
	return err
}

func (r *jobRepo) loadSegments(ctx context.Context, ex executor, job *model.ClipJob) error {
	rows, err := ex.Query(ctx, `
SELECT idx, start_ms, duration_ms, clip_key, thumb_key, overlay_text, byte_size
  FROM clip_segments WHERE job_id = $1 ORDER BY idx;`, job.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var seg model.Segment
		var startMs, durMs int64
		if err := rows.Scan(&seg.Index, &startMs, &durMs, &seg.ClipKey, &seg.ThumbKey, &seg.OverlayText, &seg.ByteSize); err != nil {
			return err
		}
		seg.Start = time.Duration(startMs) * time.Millisecond
		seg.Duration = time.Duration(durMs) * time.Millisecond
		job.Segments = append(job.Segments, seg)
	}
	return rows.Err()
}

func scanJob(row pgx.Row) (*model.ClipJob, error) {
	var job model.ClipJob
	var status string
	var srcMs, segMs int64
	err := row.Scan(
		&job.ID, &job.OwnerID, &job.SourceURL, &job.Title, &srcMs, &status,
		&job.SegmentCount, &segMs, &job.OverlayText, &job.CreditsReserved,
		&job.Refunded, &job.FailureReason, &job.CreatedAt, &job.CompletedAt, &job.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.JobStatus(status)
	job.SourceDuration = time.Duration(srcMs) * time.Millisecond
	job.SegmentLength = time.Duration(segMs) * time.Millisecond
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]*model.ClipJob, error) {
	var jobs []*model.ClipJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
