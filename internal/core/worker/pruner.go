package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/exporter/internal/export/metrics"
	"github.com/vietddude/exporter/internal/infra/storage"
)

// FileRemover deletes export files.
type FileRemover interface {
	Remove(name string) error
}

// Pruner deletes expired exports and their files.
type Pruner struct {
	interval time.Duration
	repo     storage.ExportRepository
	files    FileRemover
	log      *slog.Logger
	now      func() time.Time
}

// NewPruner creates a new Pruner worker. A non-positive interval disables it.
func NewPruner(interval time.Duration, repo storage.ExportRepository, files FileRemover) *Pruner {
	return &Pruner{
		interval: interval,
		repo:     repo,
		files:    files,
		log:      slog.Default().With("component", "pruner"),
		now:      time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune removes every export whose expiry has passed and returns how many
// were deleted.
func (p *Pruner) Prune(ctx context.Context) int {
	jobs, err := p.repo.ListExpired(ctx, p.now())
	if err != nil {
		p.log.Error("Failed to list expired exports", "error", err)
		return 0
	}

	removed := 0
	for _, job := range jobs {
		if job.FileName != "" {
			if err := p.files.Remove(job.FileName); err != nil {
				p.log.Error("Failed to remove export file", "export_id", job.ID, "error", err)
				continue
			}
		}
		if err := p.repo.Delete(ctx, job.ID); err != nil {
			p.log.Error("Failed to delete export", "export_id", job.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ExportsPruned.Add(float64(removed))
		p.log.Info("Pruned expired exports", "count", removed)
	}
	return removed
}
