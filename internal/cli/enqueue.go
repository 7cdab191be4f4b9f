package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/exporter/internal/core/domain"
	redisclient "github.com/vietddude/exporter/internal/infra/redis"
	"github.com/vietddude/exporter/internal/infra/storage/postgres"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [export_id]",
	Short: "Reset an export to pending and put it back on the queue",
	Args:  cobra.ExactArgs(1),
	Run:   runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	id := args[0]

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewExportRepo(db)
	job, err := repo.Get(ctx, id)
	if err != nil {
		slog.Error("Failed to load export", "export_id", id, "error", err)
		os.Exit(1)
	}
	resetJob(job)
	if err := repo.Update(ctx, job); err != nil {
		slog.Error("Failed to reset export", "export_id", id, "error", err)
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := redisclient.NewQueue(client, cfg.Redis.LockTTL).Push(ctx, id); err != nil {
		slog.Error("Failed to enqueue export", "export_id", id, "error", err)
		os.Exit(1)
	}

	slog.Info("Export enqueued", "export_id", id)
}

// resetJob clears the outcome of a previous run.
func resetJob(job *domain.ExportJob) {
	job.Status = domain.ExportStatusPending
	job.Error = ""
	job.FileName = ""
	job.Rows = 0
	job.Attempts = 0
	job.FinishedAt = nil
	job.ExpiresAt = nil
}
