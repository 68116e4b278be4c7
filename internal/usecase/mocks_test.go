//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/domain/model"
	"clipforge/internal/domain/ports/adapter"
	"clipforge/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	DebitFunc  func(ctx context.Context, tx repository.Tx, userID string, amount int64) error
	CreditFunc func(ctx context.Context, tx repository.Tx, userID string, amount int64) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: map[string]*model.User{}}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username && existing.ID != u.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) DebitCredits(ctx context.Context, tx repository.Tx, userID string, amount int64) error {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, tx, userID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Credits < amount {
		return domain.ErrInsufficientCredits
	}
	u.Credits -= amount
	return nil
}

func (m *MockUserRepo) CreditCredits(ctx context.Context, tx repository.Tx, userID string, amount int64) error {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, tx, userID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Credits += amount
	return nil
}

func (m *MockUserRepo) Credits(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Credits
	}
	return -1
}

// ---- Mock JobRepository ----

type MockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ClipJob

	SaveFunc         func(ctx context.Context, tx repository.Tx, job *model.ClipJob) error
	MarkRefundedFunc func(ctx context.Context, tx repository.Tx, jobID string) (bool, error)
	DeleteFunc       func(ctx context.Context, tx repository.Tx, jobID string) error
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[string]*model.ClipJob{}}
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ClipJob) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	cp.Segments = append([]model.Segment(nil), job.Segments...)
	if existing, ok := m.jobs[job.ID]; ok {
		// Save never resets the refunded flag; MarkRefunded owns it.
		cp.Refunded = existing.Refunded
		cp.Segments = existing.Segments
	}
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ClipJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	cp.Segments = append([]model.Segment(nil), job.Segments...)
	return &cp, nil
}

func (m *MockJobRepo) FetchAndMarkDownloading(ctx context.Context) (*model.ClipJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.ClipJob
	for _, job := range m.jobs {
		if job.Status != model.JobStatusPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	if err := oldest.Transition(model.JobStatusDownloading); err != nil {
		return nil, err
	}
	cp := *oldest
	return &cp, nil
}

func (m *MockJobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.ClipJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ClipJob
	for _, job := range m.jobs {
		if job.OwnerID == ownerID {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockJobRepo) SaveSegment(ctx context.Context, tx repository.Tx, jobID string, seg model.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Segments = append(job.Segments, seg)
	return nil
}

func (m *MockJobRepo) MarkRefunded(ctx context.Context, tx repository.Tx, jobID string) (bool, error) {
	if m.MarkRefundedFunc != nil {
		return m.MarkRefundedFunc(ctx, tx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if job.Refunded {
		return false, nil
	}
	job.Refunded = true
	return true, nil
}

func (m *MockJobRepo) ListExpiredCompleted(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.ClipJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ClipJob
	for _, job := range m.jobs {
		if job.Status == model.JobStatusCompleted && !cutoff.Before(job.ExpiresAt) {
			cp := *job
			cp.Segments = append([]model.Segment(nil), job.Segments...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockJobRepo) Delete(ctx context.Context, tx repository.Tx, jobID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *MockJobRepo) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[id]
	return ok
}

// ---- Mock TransactionManager ----

// MockTxManager runs the callback without a real transaction; mocks keep
// their own consistency.
type MockTxManager struct {
	mu    sync.Mutex
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock Locker ----

type MockLocker struct {
	mu          sync.Mutex
	LockedKeys  []string
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var _ adapter.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockedKeys = append(m.LockedKeys, key)
	return "lock-token", nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// ---- Mock SourceFetcher ----

type MockFetcher struct {
	ProbeFunc       func(ctx context.Context, sourceURL string) (adapter.SourceInfo, error)
	MaterializeFunc func(ctx context.Context, sourceURL, destPath string) error
}

var _ adapter.SourceFetcher = (*MockFetcher)(nil)

func (m *MockFetcher) Probe(ctx context.Context, sourceURL string) (adapter.SourceInfo, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, sourceURL)
	}
	return adapter.SourceInfo{Title: "Sample Video", Duration: 300 * time.Second}, nil
}

func (m *MockFetcher) Materialize(ctx context.Context, sourceURL, destPath string) error {
	if m.MaterializeFunc != nil {
		return m.MaterializeFunc(ctx, sourceURL, destPath)
	}
	return nil
}

// ---- Mock BlobStore ----

type MockBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	Deleted []string

	PutFunc    func(ctx context.Context, key, contentType string, body io.Reader) error
	DeleteFunc func(ctx context.Context, key string) error
}

var _ adapter.BlobStore = (*MockBlobStore)(nil)

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{objects: map[string][]byte{}}
}

func (m *MockBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, contentType, body)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *MockBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", domain.ErrNotFound
	}
	return fmt.Sprintf("https://blobs.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

func (m *MockBlobStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
