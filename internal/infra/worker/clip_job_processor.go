package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/adapter"
	"clipforge/internal/domain/ports/repository"
	"clipforge/internal/infra/metrics"
	"clipforge/internal/media"
	"clipforge/internal/usecase"
)

// ClipJobProcessor drives claimed jobs through the lifecycle:
// downloading -> processing -> completed, or any stage -> failed with a
// refund. One invocation owns one job end to end.
type ClipJobProcessor struct {
	jobs       repository.JobRepository
	ledger     usecase.LedgerUseCase
	publisher  usecase.ArtifactPublisher
	fetcher    adapter.SourceFetcher
	transcoder adapter.Transcoder
	workDir    string
	jobTimeout time.Duration
	log        *zerolog.Logger
}

func NewClipJobProcessor(
	jobs repository.JobRepository,
	ledger usecase.LedgerUseCase,
	publisher usecase.ArtifactPublisher,
	fetcher adapter.SourceFetcher,
	transcoder adapter.Transcoder,
	workDir string,
	jobTimeout time.Duration,
	logger *zerolog.Logger,
) *ClipJobProcessor {
	l := logger.With().Str("component", "ClipJobProcessor").Logger()
	return &ClipJobProcessor{
		jobs:       jobs,
		ledger:     ledger,
		publisher:  publisher,
		fetcher:    fetcher,
		transcoder: transcoder,
		workDir:    workDir,
		jobTimeout: jobTimeout,
		log:        &l,
	}
}

// Start polls for pending jobs and hands them to the pool. When the pool's
// backlog is full the tick is skipped and the jobs stay pending in the
// registry, which is the backpressure path.
func (p *ClipJobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("clip job processor started")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("clip job processor stopping")
			return
		case <-ticker.C:
			err := pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
			if err != nil && !errors.Is(err, domain.ErrQueueFull) {
				p.log.Error().Err(err).Msg("submit to pool failed")
			}
		}
	}
}

func (p *ClipJobProcessor) processOne(ctx context.Context) {
	job, err := p.jobs.FetchAndMarkDownloading(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to claim job")
		}
		return
	}

	p.log.Info().Str("job_id", job.ID).Str("owner_id", job.OwnerID).Msg("processing clip job")
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	err = p.runPipeline(jobCtx, job)
	cancel()
	took := time.Since(start)

	if err != nil {
		p.fail(job, err)
		metrics.IncJobProcessed(string(model.JobStatusFailed), took)
		return
	}
	metrics.IncJobProcessed(string(model.JobStatusCompleted), took)
	p.log.Info().Str("job_id", job.ID).Dur("took", took).Int("segments", len(job.Segments)).Msg("clip job completed")
}

// runPipeline executes fetch -> plan -> transcode+publish per segment ->
// completed. The job's ephemeral directory is removed whichever way the
// pipeline exits.
func (p *ClipJobProcessor) runPipeline(ctx context.Context, job *model.ClipJob) error {
	dir := filepath.Join(p.workDir, "clipforge-"+job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	info, err := p.fetcher.Probe(ctx, job.SourceURL)
	if err != nil {
		return err
	}
	srcPath := filepath.Join(dir, "source.mp4")
	if err := p.fetcher.Materialize(ctx, job.SourceURL, srcPath); err != nil {
		return err
	}

	if job.Title == "" {
		job.Title = info.Title
	}
	job.SourceDuration = info.Duration
	if err := job.Transition(model.JobStatusProcessing); err != nil {
		return err
	}
	if err := p.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return err
	}

	windows, err := media.PlanSegments(job.SourceDuration, job.SegmentCount, job.SegmentLength)
	if err != nil {
		return err
	}

	for _, w := range windows {
		seg, err := p.produceSegment(ctx, job, dir, srcPath, w)
		if err != nil {
			return err
		}
		if err := p.jobs.SaveSegment(ctx, repository.NoTX, job.ID, seg); err != nil {
			return err
		}
		job.Segments = append(job.Segments, seg)
		metrics.IncSegmentProduced()
	}

	if err := job.Transition(model.JobStatusCompleted); err != nil {
		return err
	}
	if err := p.jobs.Save(ctx, repository.NoTX, job); err != nil {
		// The job deadline can expire at this very last write. Retry off
		// the job context; if completion still cannot be persisted, roll the
		// in-memory status back so fail() can mark the registry row failed
		// and refund instead of leaving it stuck in processing.
		bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if retryErr := p.jobs.Save(bg, repository.NoTX, job); retryErr != nil {
			job.Status = model.JobStatusProcessing
			job.CompletedAt = nil
			return fmt.Errorf("persist completed status: %w", err)
		}
	}
	return nil
}

func (p *ClipJobProcessor) produceSegment(ctx context.Context, job *model.ClipJob, dir, srcPath string, w media.Window) (model.Segment, error) {
	clipName := fmt.Sprintf("segment_%02d.mp4", w.Index)
	thumbName := fmt.Sprintf("segment_%02d.jpg", w.Index)
	clipPath := filepath.Join(dir, clipName)
	thumbPath := filepath.Join(dir, thumbName)

	err := p.transcoder.Clip(ctx, adapter.ClipRequest{
		SourcePath:  srcPath,
		Start:       w.Start,
		Duration:    w.Duration,
		OverlayText: job.OverlayText,
		ClipPath:    clipPath,
		ThumbPath:   thumbPath,
	})
	if err != nil {
		return model.Segment{}, err
	}

	clipKey, clipSize, err := p.publishFile(ctx, job, clipName, clipPath, "video/mp4")
	if err != nil {
		return model.Segment{}, err
	}
	thumbKey, _, err := p.publishFile(ctx, job, thumbName, thumbPath, "image/jpeg")
	if err != nil {
		return model.Segment{}, err
	}

	return model.Segment{
		Index:       w.Index,
		Start:       w.Start,
		Duration:    w.Duration,
		ClipKey:     clipKey,
		ThumbKey:    thumbKey,
		OverlayText: job.OverlayText,
		ByteSize:    clipSize,
	}, nil
}

func (p *ClipJobProcessor) publishFile(ctx context.Context, job *model.ClipJob, name, path, contentType string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: open %s: %v", domain.ErrStorage, path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("%w: stat %s: %v", domain.ErrStorage, path, err)
	}
	key, err := p.publisher.Publish(ctx, job.OwnerID, job.ID, name, contentType, f)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return key, st.Size(), nil
}

// fail records the terminal failure and triggers the refund. Background
// context: the job's deadline may already be exceeded and the bookkeeping
// must still land.
func (p *ClipJobProcessor) fail(job *model.ClipJob, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p.log.Error().Err(cause).Str("job_id", job.ID).Msg("clip job failed")

	if job.Status.Terminal() {
		return
	}
	if err := job.Transition(model.JobStatusFailed); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed-state transition rejected")
		return
	}
	job.FailureReason = cause.Error()
	if err := p.jobs.Save(ctx, repository.NoTX, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("could not persist failed status")
	}
	if err := p.ledger.Refund(ctx, job.ID); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("refund failed")
	}
}
