// Package engine talks to the query engine that export rows come from.
//
// Every failure the engine reports is returned as a *domain.QueryFailure so
// that callers can classify it without inspecting transport details.
package engine

import (
	"context"

	"github.com/vietddude/exporter/internal/core/domain"
)

// Request is one page of an export query.
type Request struct {
	domain.ExportQuery
	OrganizationID int64
	Offset         int
	Limit          int
}

// Result is one page of rows.
type Result struct {
	Rows []map[string]any
}

// Engine runs queries against the backing store.
type Engine interface {
	Query(ctx context.Context, req Request) (*Result, error)
}
