package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/exporter/internal/core/domain"
)

var (
	// ErrExportNotFound is returned when an export job doesn't exist
	ErrExportNotFound = errors.New("export not found")

	// ErrExportExists is returned when creating a job whose ID is taken
	ErrExportExists = errors.New("export already exists")
)

// ExportRepository handles export job storage operations
type ExportRepository interface {
	// Create stores a new job
	Create(ctx context.Context, job *domain.ExportJob) error

	// Get retrieves a job by ID
	Get(ctx context.Context, id string) (*domain.ExportJob, error)

	// Update overwrites the mutable fields of a job
	Update(ctx context.Context, job *domain.ExportJob) error

	// List returns the most recently created jobs first
	List(ctx context.Context, limit int) ([]*domain.ExportJob, error)

	// ListExpired returns jobs whose expiry is at or before now
	ListExpired(ctx context.Context, now time.Time) ([]*domain.ExportJob, error)

	// Delete removes a job
	Delete(ctx context.Context, id string) error
}
