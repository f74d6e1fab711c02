package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"server/internal/domain"
	"server/internal/render"
	"server/internal/storage"
)

// memJobs is an in-memory RenderJobRepository with the same transition
// semantics as the Postgres implementation.
type memJobs struct {
	mu     sync.Mutex
	jobs   map[string]*domain.RenderJob
	daily  map[string]bool
	failOp string
}

func newMemJobs(jobs ...*domain.RenderJob) *memJobs {
	m := &memJobs{jobs: map[string]*domain.RenderJob{}, daily: map[string]bool{}}
	for _, j := range jobs {
		cp := *j
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = time.Now()
		}
		m.jobs[cp.ID] = &cp
	}
	return m
}

func (m *memJobs) get(id string) domain.RenderJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *memJobs) Create(_ context.Context, job *domain.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.jobs[cp.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, jobID string) (*domain.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) SetAwaitingPayment(_ context.Context, jobID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.StatusAwaitingPayment
	j.StripeSessionID = sessionID
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobs) MarkPaid(_ context.Context, jobID, paymentIntent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	switch j.Status {
	case domain.StatusPendingUpload, domain.StatusAwaitingPayment, domain.StatusPaid:
	default:
		// Late replay against a claimed or finished job: already applied.
		return nil
	}
	if j.DeletedAt != nil {
		return nil
	}
	j.Status = domain.StatusPaid
	j.StripePaymentIntent = paymentIntent
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobs) Claim(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != domain.StatusPaid {
		return domain.ErrNotClaimable
	}
	j.Status = domain.StatusProcessing
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobs) MarkDone(_ context.Context, jobID, outputKey, thumbKey string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[jobID]
	j.Status = domain.StatusDone
	j.OutputVideoKey = outputKey
	j.ThumbKey = thumbKey
	j.ExpiresAt = &expiresAt
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobs) MarkFailed(_ context.Context, jobID, errMsg string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[jobID]
	j.Status = domain.StatusFailed
	j.ErrorMessage = errMsg
	j.ExpiresAt = &expiresAt
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobs) ListPaid(_ context.Context, limit int) ([]domain.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOp == "ListPaid" {
		return nil, fmt.Errorf("list paid failed")
	}
	var out []domain.RenderJob
	for _, j := range m.jobs {
		if j.Status == domain.StatusPaid && j.DeletedAt == nil {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.Before(out[k].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RenderJob
	for _, j := range m.jobs {
		if j.DeletedAt == nil && j.ExpiresAt != nil && j.ExpiresAt.Before(now) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ExpiresAt.Before(*out[k].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) SoftDelete(_ context.Context, jobID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[jobID]
	now := time.Now()
	j.DeletedAt = &now
	j.DeleteReason = reason
	j.UpdatedAt = now
	return nil
}

func (m *memJobs) RequeueStuck(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.Status == domain.StatusProcessing && j.DeletedAt == nil && j.UpdatedAt.Before(cutoff) {
			j.Status = domain.StatusPaid
			j.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *memJobs) ClaimDailyRun(_ context.Context, task string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := task + "@" + day.Format("2006-01-02")
	if m.daily[key] {
		return false, nil
	}
	m.daily[key] = true
	return true, nil
}

var _ domain.RenderJobRepository = (*memJobs)(nil)

// memArticles maps article ids to template video keys.
type memArticles map[string]string

func (m memArticles) GetVideoKey(_ context.Context, articleID string) (string, error) {
	key, ok := m[articleID]
	if !ok || key == "" {
		return "", domain.ErrNotFound
	}
	return key, nil
}

// memStore is an in-memory ArtifactStore that can be told to fail deletes
// for specific keys.
type memStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failDeletes map[string]bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failDeletes: map[string]bool{}}
}

func (s *memStore) put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memStore) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *memStore) Write(_ context.Context, key string, data []byte, _ string) error {
	s.put(key, data)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDeletes[key] {
		return fmt.Errorf("simulated delete failure for %s", key)
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://signed.example/upload/" + key, nil
}

func (s *memStore) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/download/" + key, nil
}

var _ storage.ArtifactStore = (*memStore)(nil)

// recordingNotifier captures sent notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) SendResultLink(_ context.Context, to, _, _ string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to)
	return nil
}

// stubCapability returns fixed bytes or an error.
type stubCapability struct {
	mu    sync.Mutex
	calls int
	video []byte
	thumb []byte
	err   error
}

func (c *stubCapability) Render(context.Context, render.Request) (*render.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &render.Result{Video: c.video, Thumb: c.thumb}, nil
}

func (c *stubCapability) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// stubLock is a leaderLock with scripted availability.
type stubLock struct {
	available bool
	held      bool
	releases  int
}

func (l *stubLock) TryAcquire(context.Context) (bool, error) {
	if !l.available {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *stubLock) Release(context.Context) error {
	l.held = false
	l.releases++
	return nil
}
