// Package api exposes export jobs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/infra/queue"
	"github.com/vietddude/exporter/internal/infra/storage"
)

// FileOpener reads finished export files.
type FileOpener interface {
	Open(name string) (io.ReadCloser, error)
}

// Handler serves the export endpoints.
type Handler struct {
	repo  storage.ExportRepository
	queue queue.Queue
	files FileOpener
	log   *slog.Logger
	mux   *http.ServeMux
	now   func() time.Time
	newID func() string
}

// NewHandler wires the export routes.
func NewHandler(repo storage.ExportRepository, q queue.Queue, files FileOpener) *Handler {
	h := &Handler{
		repo:  repo,
		queue: q,
		files: files,
		log:   slog.Default().With("component", "api"),
		mux:   http.NewServeMux(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	h.mux.HandleFunc("POST /api/v1/exports", withSecurityHeaders(h.handleCreate))
	h.mux.HandleFunc("GET /api/v1/exports", withSecurityHeaders(h.handleList))
	h.mux.HandleFunc("GET /api/v1/exports/{id}", withSecurityHeaders(h.handleGet))
	h.mux.HandleFunc("GET /api/v1/exports/{id}/download", withSecurityHeaders(h.handleDownload))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// withSecurityHeaders middleware adds security headers to responses
func withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next(w, r)
	}
}

type createRequest struct {
	OrganizationID int64              `json:"organization_id"`
	Query          domain.ExportQuery `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func validateQuery(q domain.ExportQuery) error {
	if strings.TrimSpace(q.Dataset) == "" {
		return errors.New("query.dataset is required")
	}
	if len(q.Fields) == 0 {
		return errors.New("query.fields must not be empty")
	}
	for _, f := range q.Fields {
		if strings.TrimSpace(f) == "" {
			return errors.New("query.fields must not contain empty names")
		}
	}
	if q.Start.IsZero() || q.End.IsZero() {
		return errors.New("query.start and query.end are required")
	}
	if !q.Start.Before(q.End) {
		return errors.New("query.start must be before query.end")
	}
	return nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.log.Warn("Failed to decode request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}
	if err := validateQuery(req.Query); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	job := &domain.ExportJob{
		ID:             h.newID(),
		OrganizationID: req.OrganizationID,
		Query:          req.Query,
		Status:         domain.ExportStatusPending,
		CreatedAt:      h.now().UTC(),
	}
	if err := h.repo.Create(r.Context(), job); err != nil {
		h.log.Error("Failed to create export", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create export"})
		return
	}
	if err := h.queue.Push(r.Context(), job.ID); err != nil {
		h.log.Error("Failed to enqueue export", "export_id", job.ID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "failed to schedule export"})
		return
	}

	h.log.Info("Export requested", "export_id", job.ID, "dataset", job.Query.Dataset)
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.repo.List(r.Context(), 50)
	if err != nil {
		h.log.Error("Failed to list exports", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list exports"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": jobs})
}

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, id string) (*domain.ExportJob, bool) {
	job, err := h.repo.Get(ctx, id)
	if errors.Is(err, storage.ErrExportNotFound) || (err == nil && job.IsExpired(h.now())) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "export not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error("Failed to load export", "export_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load export"})
		return nil, false
	}
	return job, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := h.load(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := h.load(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}
	switch job.Status {
	case domain.ExportStatusSucceeded:
	case domain.ExportStatusFailed:
		writeJSON(w, http.StatusConflict, errorResponse{Error: job.Error})
		return
	default:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "export is not ready"})
		return
	}

	f, err := h.files.Open(job.FileName)
	if err != nil {
		h.log.Error("Failed to open export file", "export_id", job.ID, "error", err)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "export file not found"})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(job)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn("Failed to stream export", "export_id", job.ID, "error", err)
	}
}

func downloadName(job *domain.ExportJob) string {
	return fmt.Sprintf("%s-%s.csv", job.Query.Dataset, job.CreatedAt.UTC().Format("2006-01-02"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
