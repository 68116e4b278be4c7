//go:build !integration

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/adapter"
	"clipforge/internal/domain/ports/repository"
	"clipforge/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- in-memory test doubles ----

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ClipJob

	SaveFunc func(ctx context.Context, tx repository.Tx, job *model.ClipJob) error
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo { return &memJobRepo{jobs: map[string]*model.ClipJob{}} }

func (r *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ClipJob) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, job)
	}
	return r.save(ctx, tx, job)
}

func (r *memJobRepo) save(ctx context.Context, tx repository.Tx, job *model.ClipJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	cp.Segments = append([]model.Segment(nil), job.Segments...)
	if existing, ok := r.jobs[job.ID]; ok {
		cp.Segments = existing.Segments
	}
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ClipJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	cp.Segments = append([]model.Segment(nil), job.Segments...)
	return &cp, nil
}

func (r *memJobRepo) FetchAndMarkDownloading(ctx context.Context) (*model.ClipJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.Status == model.JobStatusPending {
			if err := job.Transition(model.JobStatusDownloading); err != nil {
				return nil, err
			}
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.ClipJob, error) {
	return nil, nil
}

func (r *memJobRepo) SaveSegment(ctx context.Context, tx repository.Tx, jobID string, seg model.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Segments = append(job.Segments, seg)
	return nil
}

func (r *memJobRepo) MarkRefunded(ctx context.Context, tx repository.Tx, jobID string) (bool, error) {
	return true, nil
}

func (r *memJobRepo) ListExpiredCompleted(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.ClipJob, error) {
	return nil, nil
}

func (r *memJobRepo) Delete(ctx context.Context, tx repository.Tx, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
	return nil
}

type recordingLedger struct {
	mu      sync.Mutex
	refunds []string
}

var _ usecase.LedgerUseCase = (*recordingLedger)(nil)

func (l *recordingLedger) DebitAndCreate(ctx context.Context, job *model.ClipJob) error { return nil }

func (l *recordingLedger) Refund(ctx context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refunds = append(l.refunds, jobID)
	return nil
}

func (l *recordingLedger) refundCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refunds)
}

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string]int64
}

var _ adapter.BlobStore = (*memBlobStore)(nil)

func newMemBlobStore() *memBlobStore { return &memBlobStore{objects: map[string]int64{}} }

func (s *memBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = n
	return nil
}

func (s *memBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type stubFetcher struct {
	duration time.Duration
}

func (f *stubFetcher) Probe(ctx context.Context, sourceURL string) (adapter.SourceInfo, error) {
	return adapter.SourceInfo{Title: "Fixture Video", Duration: f.duration}, nil
}

func (f *stubFetcher) Materialize(ctx context.Context, sourceURL, destPath string) error {
	return os.WriteFile(destPath, []byte("source-bytes"), 0o644)
}

// stubTranscoder writes the clip and thumb files a real encoder would
// produce, optionally failing on one window index.
type stubTranscoder struct {
	failOnIndex int
	calls       int32
}

func (tr *stubTranscoder) Clip(ctx context.Context, req adapter.ClipRequest) error {
	n := atomic.AddInt32(&tr.calls, 1)
	if tr.failOnIndex > 0 && int(n) == tr.failOnIndex {
		return fmt.Errorf("%w: encoder exited with status 1", domain.ErrTranscode)
	}
	if err := os.WriteFile(req.ClipPath, []byte("clip-bytes"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(req.ThumbPath, []byte("thumb"), 0o644)
}

// ---- pool ----

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewPool(2, 8, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	var done sync.WaitGroup
	var ran int32
	for i := 0; i < 5; i++ {
		done.Add(1)
		err := pool.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			done.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	done.Wait()
	pool.Stop()

	if got := atomic.LoadInt32(&ran); got != 5 {
		t.Fatalf("ran = %d, want 5", got)
	}
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	// Never started, so the backlog fills deterministically.
	pool := NewPool(1, 2, testLogger())

	noop := func(ctx context.Context) error { return nil }
	for i := 0; i < 2; i++ {
		if err := pool.Submit(noop); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if err := pool.Submit(noop); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}
}

func TestPoolRejectsNilTask(t *testing.T) {
	pool := NewPool(1, 2, testLogger())
	if err := pool.Submit(nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

// ---- processor ----

type procFixture struct {
	repo       *memJobRepo
	ledger     *recordingLedger
	blobs      *memBlobStore
	transcoder *stubTranscoder
	proc       *ClipJobProcessor
	workDir    string
}

func newProcFixture(t *testing.T, failOnIndex int) *procFixture {
	t.Helper()
	f := &procFixture{
		repo:       newMemJobRepo(),
		ledger:     &recordingLedger{},
		blobs:      newMemBlobStore(),
		transcoder: &stubTranscoder{failOnIndex: failOnIndex},
		workDir:    t.TempDir(),
	}
	f.proc = NewClipJobProcessor(
		f.repo,
		f.ledger,
		usecase.NewArtifactPublisher(f.blobs),
		&stubFetcher{duration: 300 * time.Second},
		f.transcoder,
		f.workDir,
		time.Minute,
		testLogger(),
	)
	return f
}

func (f *procFixture) seedPendingJob(t *testing.T, count int) *model.ClipJob {
	t.Helper()
	job, err := model.NewClipJob("owner-1", "https://example.com/watch?v=abc", "", count, 30*time.Second, "", 25, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewClipJob: %v", err)
	}
	if err := f.repo.Save(context.Background(), repository.NoTX, job); err != nil {
		t.Fatalf("save: %v", err)
	}
	return job
}

func TestProcessOneCompletesJob(t *testing.T) {
	f := newProcFixture(t, 0)
	job := f.seedPendingJob(t, 5)

	f.proc.processOne(context.Background())

	stored, err := f.repo.FindByID(context.Background(), repository.NoTX, job.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (reason %q)", stored.Status, stored.FailureReason)
	}
	if stored.Title != "Fixture Video" {
		t.Errorf("title = %q", stored.Title)
	}
	if stored.SourceDuration != 300*time.Second {
		t.Errorf("source duration = %s", stored.SourceDuration)
	}
	if len(stored.Segments) != 5 {
		t.Fatalf("segments = %d, want 5", len(stored.Segments))
	}
	for _, seg := range stored.Segments {
		if seg.ClipKey == "" || seg.ThumbKey == "" {
			t.Errorf("segment %d missing artifact keys", seg.Index)
		}
		if seg.ByteSize == 0 {
			t.Errorf("segment %d has zero byte size", seg.Index)
		}
	}
	// One clip and one thumb object per segment.
	if got := f.blobs.count(); got != 10 {
		t.Errorf("blob objects = %d, want 10", got)
	}
	if f.ledger.refundCount() != 0 {
		t.Error("completed job must not be refunded")
	}
	assertWorkdirEmpty(t, f.workDir)
}

func TestProcessOneFailureRefundsAndCleansUp(t *testing.T) {
	f := newProcFixture(t, 3)
	job := f.seedPendingJob(t, 5)

	f.proc.processOne(context.Background())

	stored, err := f.repo.FindByID(context.Background(), repository.NoTX, job.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.FailureReason == "" {
		t.Error("failure reason not recorded")
	}
	if f.ledger.refundCount() != 1 {
		t.Fatalf("refunds = %d, want 1", f.ledger.refundCount())
	}
	if f.ledger.refunds[0] != job.ID {
		t.Errorf("refunded wrong job %s", f.ledger.refunds[0])
	}
	assertWorkdirEmpty(t, f.workDir)
}

func TestProcessOneRetriesCompletedSave(t *testing.T) {
	f := newProcFixture(t, 0)
	job := f.seedPendingJob(t, 2)

	// The first attempt to persist the completed status fails; the retry on
	// a fresh context must still land it.
	var completedSaves int32
	f.repo.SaveFunc = func(ctx context.Context, tx repository.Tx, j *model.ClipJob) error {
		if j.Status == model.JobStatusCompleted && atomic.AddInt32(&completedSaves, 1) == 1 {
			return errors.New("registry write timed out")
		}
		return f.repo.save(ctx, tx, j)
	}

	f.proc.processOne(context.Background())

	stored, err := f.repo.FindByID(context.Background(), repository.NoTX, job.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed after save retry", stored.Status)
	}
	if f.ledger.refundCount() != 0 {
		t.Error("retried completion must not refund")
	}
}

func TestProcessOneCompletedSavePersistentFailureFailsJob(t *testing.T) {
	f := newProcFixture(t, 0)
	job := f.seedPendingJob(t, 2)

	// The completed status can never be persisted; the job must not stay
	// stranded in processing but end up failed and refunded.
	f.repo.SaveFunc = func(ctx context.Context, tx repository.Tx, j *model.ClipJob) error {
		if j.Status == model.JobStatusCompleted {
			return errors.New("registry unavailable")
		}
		return f.repo.save(ctx, tx, j)
	}

	f.proc.processOne(context.Background())

	stored, err := f.repo.FindByID(context.Background(), repository.NoTX, job.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.FailureReason == "" {
		t.Error("failure reason not recorded")
	}
	if f.ledger.refundCount() != 1 {
		t.Fatalf("refunds = %d, want 1", f.ledger.refundCount())
	}
}

func TestProcessOneNoPendingJobs(t *testing.T) {
	f := newProcFixture(t, 0)
	// Must be a quiet no-op when the registry has nothing to claim.
	f.proc.processOne(context.Background())
	if f.ledger.refundCount() != 0 || f.blobs.count() != 0 {
		t.Error("idle pass produced side effects")
	}
}

func assertWorkdirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read workdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workdir not cleaned, %d entries remain", len(entries))
	}
}
