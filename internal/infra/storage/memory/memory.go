package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/infra/storage"
)

// ExportRepo keeps export jobs in process memory.
type ExportRepo struct {
	jobs map[string]*domain.ExportJob
	mu   sync.RWMutex
}

func NewExportRepo() *ExportRepo {
	return &ExportRepo{jobs: make(map[string]*domain.ExportJob)}
}

func (r *ExportRepo) Create(ctx context.Context, job *domain.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return storage.ErrExportExists
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *ExportRepo) Get(ctx context.Context, id string) (*domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, storage.ErrExportNotFound
	}
	return job.Clone(), nil
}

func (r *ExportRepo) Update(ctx context.Context, job *domain.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return storage.ErrExportNotFound
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *ExportRepo) List(ctx context.Context, limit int) ([]*domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ExportJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ExportRepo) ListExpired(ctx context.Context, now time.Time) ([]*domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ExportJob
	for _, job := range r.jobs {
		if job.IsExpired(now) {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (r *ExportRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return storage.ErrExportNotFound
	}
	delete(r.jobs, id)
	return nil
}
