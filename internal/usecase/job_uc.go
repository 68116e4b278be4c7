package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/adapter"
	"clipforge/internal/domain/ports/repository"
	"clipforge/internal/infra/logging"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// SegmentConfig is the caller-supplied shape of a conversion.
type SegmentConfig struct {
	Count       int
	Length      time.Duration
	OverlayText string
}

// PreviewResult is a pure cost estimate; nothing is created or debited.
type PreviewResult struct {
	Title        string
	Duration     time.Duration
	SegmentCount int
	TotalCost    int64
	Affordable   bool
}

type SegmentView struct {
	Index        int
	Start        time.Duration
	Duration     time.Duration
	DownloadURL  string
	PreviewURL   string
	ThumbnailURL string
	ByteSize     int64
}

type JobView struct {
	ID              string
	Title           string
	Status          model.JobStatus
	FailureReason   string
	SegmentCount    int
	CreatedAt       time.Time
	CompletedAt     *time.Time
	DaysUntilExpiry int
	Segments        []SegmentView
}

type JobSummary struct {
	ID           string
	Title        string
	Status       model.JobStatus
	SegmentCount int
	CreatedAt    time.Time
}

// JobUseCase exposes the conversion entry points to the request surface.
type JobUseCase interface {
	Preview(ctx context.Context, ownerID, sourceURL string, cfg SegmentConfig) (*PreviewResult, error)
	Submit(ctx context.Context, ownerID, sourceURL string, cfg SegmentConfig) (string, error)
	GetJob(ctx context.Context, jobID, ownerID string) (*JobView, error)
	ListJobs(ctx context.Context, ownerID string) ([]JobSummary, error)
}

const listJobsLimit = 20

type jobUC struct {
	users     repository.UserRepository
	jobs      repository.JobRepository
	ledger    LedgerUseCase
	fetcher   adapter.SourceFetcher
	publisher ArtifactPublisher
	retention time.Duration
	log       *zerolog.Logger
}

func NewJobUseCase(
	users repository.UserRepository,
	jobs repository.JobRepository,
	ledger LedgerUseCase,
	fetcher adapter.SourceFetcher,
	publisher ArtifactPublisher,
	retention time.Duration,
	logger *zerolog.Logger,
) *jobUC {
	l := logger.With().Str("component", "JobUC").Logger()
	return &jobUC{
		users:     users,
		jobs:      jobs,
		ledger:    ledger,
		fetcher:   fetcher,
		publisher: publisher,
		retention: retention,
		log:       &l,
	}
}

func (u *jobUC) Preview(ctx context.Context, ownerID, sourceURL string, cfg SegmentConfig) (*PreviewResult, error) {
	defer logging.TraceDuration(u.log, "JobUC.Preview")()

	if err := validateConfig(sourceURL, cfg); err != nil {
		return nil, err
	}
	info, err := u.fetcher.Probe(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, ownerID)
	if err != nil {
		return nil, err
	}

	cost := model.JobCost(cfg.Count, cfg.Length)
	return &PreviewResult{
		Title:        info.Title,
		Duration:     info.Duration,
		SegmentCount: cfg.Count,
		TotalCost:    cost,
		Affordable:   user.Credits >= cost,
	}, nil
}

// Submit debits credits and persists the pending job atomically, then
// returns immediately; the pipeline picks the job up in the background.
func (u *jobUC) Submit(ctx context.Context, ownerID, sourceURL string, cfg SegmentConfig) (string, error) {
	defer logging.TraceDuration(u.log, "JobUC.Submit")()

	if err := validateConfig(sourceURL, cfg); err != nil {
		return "", err
	}

	cost := model.JobCost(cfg.Count, cfg.Length)
	job, err := model.NewClipJob(ownerID, sourceURL, "", cfg.Count, cfg.Length, cfg.OverlayText, cost, u.retention)
	if err != nil {
		return "", err
	}
	if err := u.ledger.DebitAndCreate(ctx, job); err != nil {
		return "", err
	}

	u.log.Info().Str("job_id", job.ID).Str("owner_id", ownerID).Int("segments", cfg.Count).Msg("job submitted")
	return job.ID, nil
}

func (u *jobUC) GetJob(ctx context.Context, jobID, ownerID string) (*JobView, error) {
	defer logging.TraceDuration(u.log, "JobUC.GetJob")()

	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrNotOwner
	}

	view := &JobView{
		ID:            job.ID,
		Title:         job.Title,
		Status:        job.Status,
		FailureReason: job.FailureReason,
		SegmentCount:  job.SegmentCount,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
	}
	if job.Status != model.JobStatusCompleted {
		return view, nil
	}

	view.DaysUntilExpiry = job.DaysUntilExpiry(time.Now())
	for _, seg := range job.Segments {
		sv := SegmentView{
			Index:    seg.Index,
			Start:    seg.Start,
			Duration: seg.Duration,
			ByteSize: seg.ByteSize,
		}
		// URLs are minted fresh on every view; nothing is cached.
		if sv.DownloadURL, err = u.publisher.DownloadURL(ctx, seg.ClipKey); err != nil {
			return nil, err
		}
		if sv.PreviewURL, err = u.publisher.PreviewURL(ctx, seg.ClipKey); err != nil {
			return nil, err
		}
		if sv.ThumbnailURL, err = u.publisher.PreviewURL(ctx, seg.ThumbKey); err != nil {
			return nil, err
		}
		view.Segments = append(view.Segments, sv)
	}
	return view, nil
}

func (u *jobUC) ListJobs(ctx context.Context, ownerID string) ([]JobSummary, error) {
	defer logging.TraceDuration(u.log, "JobUC.ListJobs")()

	jobs, err := u.jobs.ListByOwner(ctx, repository.NoTX, ownerID, listJobsLimit)
	if err != nil {
		return nil, err
	}
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSummary{
			ID:           j.ID,
			Title:        j.Title,
			Status:       j.Status,
			SegmentCount: j.SegmentCount,
			CreatedAt:    j.CreatedAt,
		})
	}
	return out, nil
}

func validateConfig(sourceURL string, cfg SegmentConfig) error {
	if err := model.ValidateSourceURL(sourceURL); err != nil {
		return err
	}
	if cfg.Count <= 0 || cfg.Count > model.MaxSegmentCount {
		return domain.ErrInvalidArgument
	}
	if cfg.Length <= 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}
