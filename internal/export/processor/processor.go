// Package processor assembles export files from query engine results.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/export/guard"
	"github.com/vietddude/exporter/internal/export/metrics"
	"github.com/vietddude/exporter/internal/export/normalize"
	"github.com/vietddude/exporter/internal/export/writer"
	"github.com/vietddude/exporter/internal/infra/engine"
	"github.com/vietddude/exporter/internal/infra/storage"
	"github.com/vietddude/exporter/internal/infra/storage/files"
)

// Config controls how exports are assembled.
type Config struct {
	BatchSize  int           `yaml:"batch_size"`
	MaxRows    int           `yaml:"max_rows"`   // <= 0 = unlimited; config.Load fills 0 with the default
	Expiration time.Duration `yaml:"expiration"` // how long a finished file is kept
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	BatchSize:  10000,
	MaxRows:    10000000,
	Expiration: 7 * 24 * time.Hour,
}

// FileStore is where finished exports are written.
type FileStore interface {
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
}

// Processor runs one export job end to end.
type Processor struct {
	cfg    Config
	repo   storage.ExportRepository
	engine engine.Engine
	files  FileStore
	log    *slog.Logger
	now    func() time.Time
}

// New creates a processor. Zero config fields take DefaultConfig values.
func New(
	cfg Config,
	repo storage.ExportRepository,
	eng engine.Engine,
	fs FileStore,
	log *slog.Logger,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultConfig.Expiration
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		cfg:    cfg,
		repo:   repo,
		engine: eng,
		files:  fs,
		log:    log.With("component", "processor"),
		now:    time.Now,
	}
}

// Process assembles the export for jobID. A query the engine rejects marks
// the job failed with a user-facing message and returns nil. Any other error
// leaves the job pending and is returned so the caller can retry it.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	job, err := p.repo.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		p.log.Debug("Skipping finished export", "export_id", jobID, "status", job.Status)
		return nil
	}

	job.Status = domain.ExportStatusRunning
	job.Attempts++
	if err := p.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("mark export %s running: %w", jobID, err)
	}

	start := time.Now()
	log := p.log.With("export_id", jobID, "dataset", job.Query.Dataset, "attempt", job.Attempts)
	log.Info("Assembling export")

	rows, err := p.assemble(ctx, job, log)
	var exportErr *domain.ExportError
	if errors.As(err, &exportErr) {
		return p.finishFailed(ctx, job, exportErr.Message)
	}
	if err != nil {
		job.Status = domain.ExportStatusPending
		if uerr := p.repo.Update(context.WithoutCancel(ctx), job); uerr != nil {
			log.Warn("Failed to reset export to pending", "error", uerr)
		}
		return fmt.Errorf("assemble export %s: %w", jobID, err)
	}

	now := p.now()
	expires := now.Add(p.cfg.Expiration)
	job.Status = domain.ExportStatusSucceeded
	job.FileName = files.FileName(job.ID)
	job.Rows = rows
	job.Error = ""
	job.FinishedAt = &now
	job.ExpiresAt = &expires
	if err := p.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("mark export %s succeeded: %w", jobID, err)
	}

	metrics.ExportsTotal.WithLabelValues(string(domain.ExportStatusSucceeded)).Inc()
	metrics.RowsExported.WithLabelValues(job.Query.Dataset).Add(float64(rows))
	metrics.ExportDuration.WithLabelValues(job.Query.Dataset).Observe(time.Since(start).Seconds())
	log.Info("Export finished", "rows", rows, "duration", time.Since(start))
	return nil
}

// Abandon marks a job failed after its retries are used up.
func (p *Processor) Abandon(ctx context.Context, jobID string) error {
	job, err := p.repo.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		return nil
	}
	return p.finishFailed(ctx, job, guard.MsgInternal)
}

func (p *Processor) finishFailed(ctx context.Context, job *domain.ExportJob, message string) error {
	now := p.now()
	expires := now.Add(p.cfg.Expiration)
	job.Status = domain.ExportStatusFailed
	job.Error = message
	job.FileName = ""
	job.Rows = 0
	job.FinishedAt = &now
	job.ExpiresAt = &expires
	if err := p.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("mark export %s failed: %w", job.ID, err)
	}
	metrics.ExportsTotal.WithLabelValues(string(domain.ExportStatusFailed)).Inc()
	p.log.Warn("Export failed", "export_id", job.ID, "reason", message)
	return nil
}

func (p *Processor) assemble(ctx context.Context, job *domain.ExportJob, log *slog.Logger) (int64, error) {
	name := files.FileName(job.ID)
	f, err := p.files.Create(name)
	if err != nil {
		return 0, err
	}

	rows, err := p.writeRows(ctx, job, f, log)
	cerr := f.Close()
	if err == nil && cerr != nil {
		err = fmt.Errorf("close export file: %w", cerr)
	}
	if err != nil {
		if rerr := p.files.Remove(name); rerr != nil {
			log.Warn("Failed to remove partial export", "error", rerr)
		}
		return 0, err
	}
	return rows, nil
}

func (p *Processor) writeRows(ctx context.Context, job *domain.ExportJob, w io.Writer, log *slog.Logger) (int64, error) {
	out := writer.NewCSV(w, job.Query.Fields)
	observe := guard.Observer(metrics.FailureObserver(log))

	offset := 0
	for {
		limit := p.cfg.BatchSize
		if p.cfg.MaxRows > 0 {
			limit = min(limit, p.cfg.MaxRows-offset)
		}
		if limit <= 0 {
			break
		}

		req := engine.Request{
			ExportQuery:    job.Query,
			OrganizationID: job.OrganizationID,
			Offset:         offset,
			Limit:          limit,
		}
		res, err := guard.RunContext(ctx, func(ctx context.Context) (*engine.Result, error) {
			return p.engine.Query(ctx, req)
		}, observe)
		if err != nil {
			return 0, err
		}

		if err := out.Write(normalize.Rows(res.Rows)); err != nil {
			return 0, err
		}
		offset += len(res.Rows)
		log.Debug("Wrote batch", "offset", offset, "batch", len(res.Rows))

		if len(res.Rows) < limit {
			break
		}
	}

	if err := out.Flush(); err != nil {
		return 0, err
	}
	return out.Rows(), nil
}
