package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/infra/storage"
)

const uniqueViolation = "23505"

// ExportRepo implements storage.ExportRepository using PostgreSQL.
type ExportRepo struct {
	db *DB
}

// NewExportRepo creates a new PostgreSQL export repository.
func NewExportRepo(db *DB) *ExportRepo {
	return &ExportRepo{db: db}
}

type exportRow struct {
	ID             string         `db:"id"`
	OrganizationID int64          `db:"organization_id"`
	Dataset        string         `db:"dataset"`
	Fields         pq.StringArray `db:"fields"`
	Conditions     string         `db:"conditions"`
	Projects       pq.Int64Array  `db:"projects"`
	QueryStart     time.Time      `db:"query_start"`
	QueryEnd       time.Time      `db:"query_end"`
	Status         string         `db:"status"`
	FileName       string         `db:"file_name"`
	RowCount       int64          `db:"row_count"`
	ErrorMsg       string         `db:"error_msg"`
	Attempts       int            `db:"attempts"`
	CreatedAt      time.Time      `db:"created_at"`
	FinishedAt     sql.NullTime   `db:"finished_at"`
	ExpiresAt      sql.NullTime   `db:"expires_at"`
}

const selectColumns = `
	id, organization_id, dataset, fields, conditions, projects, query_start, query_end,
	status, file_name, row_count, error_msg, attempts, created_at, finished_at, expires_at
`

func toRow(job *domain.ExportJob) exportRow {
	return exportRow{
		ID:             job.ID,
		OrganizationID: job.OrganizationID,
		Dataset:        job.Query.Dataset,
		Fields:         pq.StringArray(job.Query.Fields),
		Conditions:     job.Query.Conditions,
		Projects:       pq.Int64Array(job.Query.Projects),
		QueryStart:     job.Query.Start,
		QueryEnd:       job.Query.End,
		Status:         string(job.Status),
		FileName:       job.FileName,
		RowCount:       job.Rows,
		ErrorMsg:       job.Error,
		Attempts:       job.Attempts,
		CreatedAt:      job.CreatedAt,
		FinishedAt:     nullTime(job.FinishedAt),
		ExpiresAt:      nullTime(job.ExpiresAt),
	}
}

func (r exportRow) toDomain() *domain.ExportJob {
	return &domain.ExportJob{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Query: domain.ExportQuery{
			Dataset:    r.Dataset,
			Fields:     []string(r.Fields),
			Conditions: r.Conditions,
			Projects:   []int64(r.Projects),
			Start:      r.QueryStart,
			End:        r.QueryEnd,
		},
		Status:     domain.ExportStatus(r.Status),
		FileName:   r.FileName,
		Rows:       r.RowCount,
		Error:      r.ErrorMsg,
		Attempts:   r.Attempts,
		CreatedAt:  r.CreatedAt,
		FinishedAt: timePtr(r.FinishedAt),
		ExpiresAt:  timePtr(r.ExpiresAt),
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Create inserts a new export job.
func (r *ExportRepo) Create(ctx context.Context, job *domain.ExportJob) error {
	query := `
		INSERT INTO data_exports (
			id, organization_id, dataset, fields, conditions, projects, query_start, query_end,
			status, file_name, row_count, error_msg, attempts, created_at, finished_at, expires_at
		) VALUES (
			:id, :organization_id, :dataset, :fields, :conditions, :projects, :query_start, :query_end,
			:status, :file_name, :row_count, :error_msg, :attempts, :created_at, :finished_at, :expires_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, toRow(job))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return storage.ErrExportExists
		}
		return fmt.Errorf("failed to create export: %w", err)
	}
	return nil
}

// Get retrieves an export job by ID.
func (r *ExportRepo) Get(ctx context.Context, id string) (*domain.ExportJob, error) {
	var row exportRow
	err := r.db.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM data_exports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return row.toDomain(), nil
}

// Update writes back the mutable columns of a job.
func (r *ExportRepo) Update(ctx context.Context, job *domain.ExportJob) error {
	query := `
		UPDATE data_exports SET
			status = :status,
			file_name = :file_name,
			row_count = :row_count,
			error_msg = :error_msg,
			attempts = :attempts,
			finished_at = :finished_at,
			expires_at = :expires_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, toRow(job))
	if err != nil {
		return fmt.Errorf("failed to update export: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update export: %w", err)
	}
	if n == 0 {
		return storage.ErrExportNotFound
	}
	return nil
}

// List returns the newest jobs first.
func (r *ExportRepo) List(ctx context.Context, limit int) ([]*domain.ExportJob, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []exportRow
	query := `SELECT ` + selectColumns + ` FROM data_exports ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return toDomainList(rows), nil
}

// ListExpired returns jobs whose expiry has passed.
func (r *ExportRepo) ListExpired(ctx context.Context, now time.Time) ([]*domain.ExportJob, error) {
	var rows []exportRow
	query := `SELECT ` + selectColumns + ` FROM data_exports WHERE expires_at IS NOT NULL AND expires_at <= $1`
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list expired exports: %w", err)
	}
	return toDomainList(rows), nil
}

// Delete removes a job.
func (r *ExportRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_exports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}
	if n == 0 {
		return storage.ErrExportNotFound
	}
	return nil
}

func toDomainList(rows []exportRow) []*domain.ExportJob {
	out := make([]*domain.ExportJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
