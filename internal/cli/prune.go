package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/exporter/internal/core/worker"
	"github.com/vietddude/exporter/internal/infra/storage/files"
	"github.com/vietddude/exporter/internal/infra/storage/postgres"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired exports and their files once",
	Run:   runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := files.NewStore(cfg.Export.Dir)
	if err != nil {
		slog.Error("Failed to open export dir", "error", err)
		os.Exit(1)
	}

	removed := worker.NewPruner(cfg.Export.PruneInterval, postgres.NewExportRepo(db), store).Prune(ctx)
	slog.Info("Prune finished", "removed", removed)
}
