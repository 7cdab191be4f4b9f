package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/exporter/internal/export/metrics"
	"github.com/vietddude/exporter/internal/infra/queue"
	"github.com/vietddude/exporter/internal/infra/storage"
)

// JobProcessor runs export jobs.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
	Abandon(ctx context.Context, jobID string) error
}

// LockRefresher is implemented by queues whose processing locks expire.
// The dispatcher keeps the lock alive while a job runs.
type LockRefresher interface {
	RefreshLock(ctx context.Context, jobID string) error
	LockTTL() time.Duration
}

// DispatcherConfig holds configuration for the job dispatcher.
type DispatcherConfig struct {
	Workers     int           `yaml:"workers"`      // concurrent exports (default: 2)
	MaxAttempts int           `yaml:"max_attempts"` // tries before a job is abandoned (default: 3)
	EmptySleep  time.Duration `yaml:"empty_sleep"`  // sleep when queue empty (default: 2s)
	JobTimeout  time.Duration `yaml:"job_timeout"`  // max time per job (default: 30m)
}

// DefaultDispatcherConfig returns default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     2,
		MaxAttempts: 3,
		EmptySleep:  2 * time.Second,
		JobTimeout:  30 * time.Minute,
	}
}

// Dispatcher pulls job IDs off the queue and hands them to the processor.
type Dispatcher struct {
	cfg   DispatcherConfig
	queue queue.Queue
	repo  storage.ExportRepository
	proc  JobProcessor
	log   *slog.Logger
	wg    sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Zero config fields take defaults.
func NewDispatcher(
	cfg DispatcherConfig,
	q queue.Queue,
	repo storage.ExportRepository,
	proc JobProcessor,
) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.EmptySleep <= 0 {
		cfg.EmptySleep = def.EmptySleep
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	return &Dispatcher{
		cfg:   cfg,
		queue: q,
		repo:  repo,
		proc:  proc,
		log:   slog.Default().With("component", "dispatcher"),
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("Starting dispatcher", "workers", d.cfg.Workers)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(n int) {
			defer d.wg.Done()
			d.run(ctx, n)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, n int) {
	log := d.log.With("worker", n)
	for {
		if ctx.Err() != nil {
			log.Debug("Worker stopped")
			return
		}

		jobID, found, err := d.queue.Pop(ctx)
		if err != nil {
			log.Error("Failed to pop job", "error", err)
			d.sleep(ctx)
			continue
		}
		if !found {
			d.sleep(ctx)
			continue
		}

		if depth, err := d.queue.Len(ctx); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}
		d.handle(ctx, log, jobID)
	}
}

// handle runs one job and decides whether it goes back on the queue.
func (d *Dispatcher) handle(ctx context.Context, log *slog.Logger, jobID string) {
	jobCtx, cancel := context.WithTimeout(ctx, d.cfg.JobTimeout)
	stopRefresh := d.keepLocked(jobCtx, log, jobID)
	err := d.proc.Process(jobCtx, jobID)
	cancel()
	stopRefresh()

	// ack before any requeue so the job is not seen as in flight
	if ackErr := d.queue.Ack(context.WithoutCancel(ctx), jobID); ackErr != nil {
		log.Warn("Failed to ack job", "export_id", jobID, "error", ackErr)
	}
	if err == nil {
		return
	}

	log.Error("Failed to process export", "export_id", jobID, "error", err)
	if ctx.Err() != nil {
		// shutting down; leave it for the next run
		d.requeue(log, jobID)
		return
	}

	job, gerr := d.repo.Get(ctx, jobID)
	if gerr != nil {
		log.Error("Failed to load export", "export_id", jobID, "error", gerr)
		return
	}
	if job.Attempts >= d.cfg.MaxAttempts {
		log.Warn("Giving up on export", "export_id", jobID, "attempts", job.Attempts)
		if aerr := d.proc.Abandon(ctx, jobID); aerr != nil {
			log.Error("Failed to abandon export", "export_id", jobID, "error", aerr)
		}
		return
	}
	d.requeue(log, jobID)
}

// keepLocked refreshes the processing lock at a third of its TTL until the
// returned stop function is called or ctx ends.
func (d *Dispatcher) keepLocked(ctx context.Context, log *slog.Logger, jobID string) func() {
	r, ok := d.queue.(LockRefresher)
	if !ok || r.LockTTL() <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.LockTTL() / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.RefreshLock(ctx, jobID); err != nil && ctx.Err() == nil {
					log.Warn("Failed to refresh job lock", "export_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (d *Dispatcher) requeue(log *slog.Logger, jobID string) {
	if err := d.queue.Push(context.Background(), jobID); err != nil {
		log.Error("Failed to re-queue export", "export_id", jobID, "error", err)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.cfg.EmptySleep):
	}
}
