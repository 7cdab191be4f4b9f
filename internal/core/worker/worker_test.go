package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/infra/queue"
	"github.com/vietddude/exporter/internal/infra/storage/memory"
)

// =============================================================================
// Stubs
// =============================================================================

type stubProcessor struct {
	repo     *memory.ExportRepo
	failures int

	mu        sync.Mutex
	calls     int
	abandoned []string
}

func (s *stubProcessor) Process(ctx context.Context, jobID string) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Attempts++
	if !fail {
		job.Status = domain.ExportStatusSucceeded
	}
	_ = s.repo.Update(ctx, job)
	if fail {
		return errors.New("transient")
	}
	return nil
}

func (s *stubProcessor) Abandon(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = append(s.abandoned, jobID)
	return nil
}

func (s *stubProcessor) snapshot() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]string(nil), s.abandoned...)
}

type stubFiles struct {
	removed []string
}

func (s *stubFiles) Remove(name string) error {
	s.removed = append(s.removed, name)
	return nil
}

type refreshingQueue struct {
	*queue.Memory
	ttl time.Duration

	mu        sync.Mutex
	refreshed []string
}

func (q *refreshingQueue) RefreshLock(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refreshed = append(q.refreshed, jobID)
	return nil
}

func (q *refreshingQueue) LockTTL() time.Duration { return q.ttl }

func (q *refreshingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.refreshed)
}

type slowProcessor struct {
	delay time.Duration
}

func (s *slowProcessor) Process(ctx context.Context, jobID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
		return nil
	}
}

func (s *slowProcessor) Abandon(ctx context.Context, jobID string) error { return nil }

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func setup(t *testing.T, failures int) (*memory.ExportRepo, *queue.Memory, *stubProcessor) {
	t.Helper()
	repo := memory.NewExportRepo()
	q := queue.NewMemory()
	ctx := context.Background()
	if err := repo.Create(ctx, &domain.ExportJob{ID: "job-1", Status: domain.ExportStatusPending}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_ = q.Push(ctx, "job-1")
	return repo, q, &stubProcessor{repo: repo, failures: failures}
}

// =============================================================================
// Dispatcher
// =============================================================================

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	repo, q, proc := setup(t, 2)
	d := NewDispatcher(DispatcherConfig{Workers: 1, MaxAttempts: 3, EmptySleep: time.Millisecond}, q, repo, proc)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	eventually(t, func() bool {
		calls, _ := proc.snapshot()
		return calls == 3
	})
	cancel()
	d.Wait()

	job, _ := repo.Get(context.Background(), "job-1")
	if job.Status != domain.ExportStatusSucceeded {
		t.Errorf("status = %s", job.Status)
	}
	if _, abandoned := proc.snapshot(); len(abandoned) != 0 {
		t.Errorf("job should not be abandoned")
	}
}

func TestDispatcher_AbandonsAfterMaxAttempts(t *testing.T) {
	repo, q, proc := setup(t, 100)
	d := NewDispatcher(DispatcherConfig{Workers: 2, MaxAttempts: 2, EmptySleep: time.Millisecond}, q, repo, proc)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	eventually(t, func() bool {
		_, abandoned := proc.snapshot()
		return len(abandoned) == 1
	})
	cancel()
	d.Wait()

	calls, abandoned := proc.snapshot()
	if calls != 2 || abandoned[0] != "job-1" {
		t.Errorf("calls=%d abandoned=%v", calls, abandoned)
	}
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Errorf("abandoned job still queued")
	}
}

func TestDispatcher_RefreshesLockWhileRunning(t *testing.T) {
	repo := memory.NewExportRepo()
	q := &refreshingQueue{Memory: queue.NewMemory(), ttl: 15 * time.Millisecond}
	d := NewDispatcher(DispatcherConfig{Workers: 1}, q, repo, &slowProcessor{delay: 80 * time.Millisecond})

	d.handle(context.Background(), d.log, "job-1")

	n := q.count()
	if n < 2 {
		t.Fatalf("expected the lock to be refreshed while running, got %d refreshes", n)
	}
	q.mu.Lock()
	for _, id := range q.refreshed {
		if id != "job-1" {
			t.Errorf("refreshed lock of %q", id)
		}
	}
	q.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	if after := q.count(); after != n {
		t.Errorf("lock refreshed after the job finished: %d -> %d", n, after)
	}
}

func TestDispatcher_NoRefreshForPlainQueue(t *testing.T) {
	repo := memory.NewExportRepo()
	d := NewDispatcher(DispatcherConfig{Workers: 1}, queue.NewMemory(), repo, &slowProcessor{})

	stop := d.keepLocked(context.Background(), d.log, "job-1")
	stop()
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, queue.NewMemory(), memory.NewExportRepo(), &stubProcessor{})
	if d.cfg != DefaultDispatcherConfig() {
		t.Errorf("cfg = %+v", d.cfg)
	}
}

// =============================================================================
// Pruner
// =============================================================================

func TestPruner_Prune(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewExportRepo()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	jobs := []*domain.ExportJob{
		{ID: "expired", FileName: "expired.csv", ExpiresAt: &past},
		{ID: "failed", ExpiresAt: &past},
		{ID: "fresh", FileName: "fresh.csv", ExpiresAt: &future},
		{ID: "pending"},
	}
	for _, j := range jobs {
		_ = repo.Create(ctx, j)
	}

	fs := &stubFiles{}
	p := NewPruner(time.Hour, repo, fs)
	p.now = func() time.Time { return now }

	if n := p.Prune(ctx); n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	if len(fs.removed) != 1 || fs.removed[0] != "expired.csv" {
		t.Errorf("removed files = %v", fs.removed)
	}
	for _, id := range []string{"fresh", "pending"} {
		if _, err := repo.Get(ctx, id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
}
