package model

import (
	"net/url"
	"time"

	"clipforge/internal/domain"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// CanTransition reports whether moving from s to `to` is a legal step of the
// job lifecycle. Completed and failed are terminal.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusDownloading || to == JobStatusFailed
	case JobStatusDownloading:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Segment is one produced clip plus its thumbnail. A segment row is written
// exactly once, after its artifacts are published, and is immutable after.
type Segment struct {
	Index       int
	Start       time.Duration
	Duration    time.Duration
	ClipKey     string
	ThumbKey    string
	OverlayText string
	ByteSize    int64
}

// ClipJob tracks one conversion of a long-form source into SegmentCount
// vertical clips. CreditsReserved is fixed at creation and never changes.
type ClipJob struct {
	ID              string
	OwnerID         string
	SourceURL       string
	Title           string
	SourceDuration  time.Duration
	Status          JobStatus
	SegmentCount    int
	SegmentLength   time.Duration
	OverlayText     string
	CreditsReserved int64
	Refunded        bool
	FailureReason   string
	Segments        []Segment
	CreatedAt       time.Time
	CompletedAt     *time.Time
	ExpiresAt       time.Time
}

const MaxSegmentCount = 20

func NewClipJob(ownerID, sourceURL, title string, segmentCount int, segmentLength time.Duration, overlayText string, cost int64, retention time.Duration) (*ClipJob, error) {
	if ownerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}
	if segmentCount <= 0 || segmentCount > MaxSegmentCount {
		return nil, domain.ErrInvalidArgument
	}
	if segmentLength <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if cost <= 0 || retention <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &ClipJob{
		ID:              ulid.Make().String(),
		OwnerID:         ownerID,
		SourceURL:       sourceURL,
		Title:           title,
		Status:          JobStatusPending,
		SegmentCount:    segmentCount,
		SegmentLength:   segmentLength,
		OverlayText:     overlayText,
		CreditsReserved: cost,
		CreatedAt:       now,
		ExpiresAt:       now.Add(retention),
	}, nil
}

// ValidateSourceURL rejects anything that is not an absolute http(s) URL
// before any credits are touched.
func ValidateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Transition applies a lifecycle step, rejecting anything CanTransition does
// not allow. CompletedAt is stamped on entry to the completed state.
func (j *ClipJob) Transition(to JobStatus) error {
	if !j.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	j.Status = to
	if to == JobStatusCompleted {
		now := time.Now()
		j.CompletedAt = &now
	}
	return nil
}

func (j *ClipJob) Expired(now time.Time) bool {
	return !now.Before(j.ExpiresAt)
}

// DaysUntilExpiry returns the remaining retention in whole days, rounded up.
func (j *ClipJob) DaysUntilExpiry(now time.Time) int {
	if j.Expired(now) {
		return 0
	}
	d := j.ExpiresAt.Sub(now)
	return int((d + 24*time.Hour - 1) / (24 * time.Hour))
}
