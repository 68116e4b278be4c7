package model

import (
	"errors"
	"testing"
	"time"

	"clipforge/internal/domain"
)

func TestJobStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusDownloading},
		{JobStatusPending, JobStatusFailed},
		{JobStatusDownloading, JobStatusProcessing},
		{JobStatusDownloading, JobStatusFailed},
		{JobStatusProcessing, JobStatusCompleted},
		{JobStatusProcessing, JobStatusFailed},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusProcessing},
		{JobStatusPending, JobStatusCompleted},
		{JobStatusDownloading, JobStatusCompleted},
		{JobStatusCompleted, JobStatusFailed},
		{JobStatusCompleted, JobStatusPending},
		{JobStatusFailed, JobStatusPending},
		{JobStatusFailed, JobStatusCompleted},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestClipJobTransition(t *testing.T) {
	job := mustNewJob(t)

	if err := job.Transition(JobStatusCompleted); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending -> completed: want ErrInvalidTransition, got %v", err)
	}

	for _, st := range []JobStatus{JobStatusDownloading, JobStatusProcessing, JobStatusCompleted} {
		if err := job.Transition(st); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}
	if job.CompletedAt == nil {
		t.Fatal("CompletedAt not stamped on completion")
	}
	if err := job.Transition(JobStatusFailed); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("completed is terminal, got %v", err)
	}
}

func TestNewClipJobValidation(t *testing.T) {
	cases := []struct {
		name      string
		owner     string
		sourceURL string
		count     int
		segLen    time.Duration
	}{
		{"no owner", "", "https://example.com/v", 5, 30 * time.Second},
		{"bad scheme", "owner", "ftp://example.com/v", 5, 30 * time.Second},
		{"not a url", "owner", "not a url at all", 5, 30 * time.Second},
		{"zero count", "owner", "https://example.com/v", 0, 30 * time.Second},
		{"too many segments", "owner", "https://example.com/v", MaxSegmentCount + 1, 30 * time.Second},
		{"zero length", "owner", "https://example.com/v", 5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClipJob(tc.owner, tc.sourceURL, "", tc.count, tc.segLen, "", 25, 7*24*time.Hour)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("want ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestNewClipJobDefaults(t *testing.T) {
	job := mustNewJob(t)
	if job.ID == "" {
		t.Error("job ID not generated")
	}
	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.Refunded {
		t.Error("refunded should default to false")
	}
	if want := job.CreatedAt.Add(7 * 24 * time.Hour); !job.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %s, want %s", job.ExpiresAt, want)
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	job := mustNewJob(t)
	job.ExpiresAt = time.Now().Add(6*24*time.Hour + time.Hour)

	// 6 days and change rounds up to 7.
	if got := job.DaysUntilExpiry(time.Now()); got != 7 {
		t.Fatalf("DaysUntilExpiry = %d, want 7", got)
	}
	if got := job.DaysUntilExpiry(job.ExpiresAt.Add(time.Hour)); got != 0 {
		t.Fatalf("past expiry: DaysUntilExpiry = %d, want 0", got)
	}
	if !job.Expired(job.ExpiresAt) {
		t.Fatal("job should be expired exactly at ExpiresAt")
	}
}

func TestPricingTiers(t *testing.T) {
	cases := []struct {
		segLen time.Duration
		want   int64
	}{
		{15 * time.Second, 5},
		{30 * time.Second, 5},
		{45 * time.Second, 8},
		{60 * time.Second, 8},
		{90 * time.Second, 12},
	}
	for _, tc := range cases {
		if got := PricePerSegment(tc.segLen); got != tc.want {
			t.Errorf("PricePerSegment(%s) = %d, want %d", tc.segLen, got, tc.want)
		}
	}

	if got := JobCost(5, 30*time.Second); got != 25 {
		t.Errorf("JobCost(5, 30s) = %d, want 25", got)
	}
}

func TestNewUserValidation(t *testing.T) {
	if _, err := NewUser("", "", "hash", 100); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty username: got %v", err)
	}
	if _, err := NewUser("", "alice", "", 100); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty hash: got %v", err)
	}
	u, err := NewUser("", "alice", "hash", 100)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if u.ID == "" || u.Credits != 100 {
		t.Fatalf("unexpected user %+v", u)
	}
}

func mustNewJob(t *testing.T) *ClipJob {
	t.Helper()
	job, err := NewClipJob("owner-1", "https://example.com/watch?v=abc", "Test", 5, 30*time.Second, "", 25, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewClipJob: %v", err)
	}
	return job
}
