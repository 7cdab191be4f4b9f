package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/infra/storage/postgres"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent exports",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of exports to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	jobs, err := postgres.NewExportRepo(db).List(ctx, statusLimit)
	if err != nil {
		slog.Error("Failed to list exports", "error", err)
		os.Exit(1)
	}
	printJobs(os.Stdout, jobs)
}

func printJobs(out io.Writer, jobs []*domain.ExportJob) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tDATASET\tSTATUS\tROWS\tCREATED\tERROR")

	for _, job := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			job.ID,
			job.Query.Dataset,
			job.Status,
			job.Rows,
			job.CreatedAt.UTC().Format(time.RFC3339),
			job.Error,
		)
	}
	_ = w.Flush()
}
