package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/exporter/internal/core/config"
	"github.com/vietddude/exporter/internal/core/worker"
	"github.com/vietddude/exporter/internal/export/api"
	"github.com/vietddude/exporter/internal/export/health"
	"github.com/vietddude/exporter/internal/export/processor"
	"github.com/vietddude/exporter/internal/infra/engine"
	"github.com/vietddude/exporter/internal/infra/queue"
	redisclient "github.com/vietddude/exporter/internal/infra/redis"
	"github.com/vietddude/exporter/internal/infra/storage"
	"github.com/vietddude/exporter/internal/infra/storage/files"
	"github.com/vietddude/exporter/internal/infra/storage/memory"
	"github.com/vietddude/exporter/internal/infra/storage/postgres"
	"github.com/vietddude/exporter/migrations"
)

// Exporter is the main application struct that manages the export service lifecycle.
type Exporter struct {
	cfg          Config
	repo         storage.ExportRepository
	queue        queue.Queue
	files        *files.Store
	dispatcher   *worker.Dispatcher
	pruner       *worker.Pruner
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
	cancel       context.CancelFunc
}

// Config holds the application configuration.
type Config struct {
	Port     int
	Redis    redisclient.Config
	Database postgres.Config
	Engine   engine.Config
	Export   config.ExportConfig
}

// NewExporter creates a new Exporter with all dependencies initialized.
// PostgreSQL and Redis are used when their URLs are set; otherwise jobs
// live in memory.
func NewExporter(cfg Config) (*Exporter, error) {
	log := slog.Default().With("component", "exporter")
	e := &Exporter{cfg: cfg, log: log}

	// 1. Storage
	if cfg.Database.URL != "" {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS, "."); err != nil {
			return nil, err
		}
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		e.db = db
		e.repo = postgres.NewExportRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		e.repo = memory.NewExportRepo()
		log.Info("Using Memory storage")
	}

	// 2. Queue
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			e.closeBackends()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		e.redisClient = client
		e.queue = redisclient.NewQueue(client, cfg.Redis.LockTTL)
		log.Info("Using Redis queue")
	} else {
		e.queue = queue.NewMemory()
		log.Info("Using Memory queue")
	}

	// 3. Files
	store, err := files.NewStore(cfg.Export.Dir)
	if err != nil {
		e.closeBackends()
		return nil, fmt.Errorf("failed to init export dir: %w", err)
	}
	e.files = store

	// 4. Pipeline
	proc := processor.New(cfg.Export.Processor, e.repo, engine.NewHTTPClient(cfg.Engine), store, slog.Default())
	e.dispatcher = worker.NewDispatcher(cfg.Export.Dispatcher, e.queue, e.repo, proc)
	if cfg.Export.PruneInterval > 0 {
		e.pruner = worker.NewPruner(cfg.Export.PruneInterval, e.repo, store)
	}

	// 5. HTTP
	components := make(map[string]health.Pinger)
	if e.db != nil {
		components["database"] = e.db
	}
	if e.redisClient != nil {
		components["redis"] = e.redisClient
	}
	monitor := health.NewMonitor(components, e.queue)
	e.healthServer = health.NewServer(monitor, api.NewHandler(e.repo, e.queue, store), cfg.Port)

	return e, nil
}

// Start starts the HTTP server and the background workers.
func (e *Exporter) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)

	go func() {
		if err := e.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("HTTP server failed", "error", err)
		}
	}()

	if e.db != nil {
		e.db.StartMetricsCollector(ctx)
	}

	e.dispatcher.Start(ctx)

	if e.pruner != nil {
		go e.pruner.Start(ctx)
	}

	return nil
}

// Stop stops the workers, waits for in-flight jobs and releases backends.
func (e *Exporter) Stop(ctx context.Context) error {
	e.log.Info("Stopping Exporter...")

	if e.cancel != nil {
		e.cancel()
	}

	var errs []error
	if err := e.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	done := make(chan struct{})
	go func() {
		e.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for workers: %w", ctx.Err()))
	}

	e.closeBackends()
	e.log.Info("Exporter stopped")
	return errors.Join(errs...)
}

// Handler returns the root HTTP handler.
func (e *Exporter) Handler() http.Handler {
	return e.healthServer.Handler()
}

func (e *Exporter) closeBackends() {
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("Failed to close DB", "error", err)
		}
	}
}
