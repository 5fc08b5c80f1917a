// Package reportstore talks to the vector store holding generated analysis
// reports. Reports are searchable by embedding similarity or by exact
// metadata (date) lookup.
package reportstore

import (
	"context"
	"errors"
)

// Sentinel errors for report store failures.
var (
	ErrStoreUnreachable = errors.New("report store unreachable")
	ErrStoreRequest     = errors.New("report store request failed")
	ErrReportNotFound   = errors.New("report not found")
)

// Result is one stored report as returned by lookups and similarity queries.
// Distance is 0 for exact lookups and the similarity distance for queries
// (lower is more similar).
type Result struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Store is the report store interface. All vector-store operations go
// through here.
type Store interface {
	// Add inserts a report. The caller supplies the embedding vector.
	Add(ctx context.Context, id, document string, embedding []float32, metadata map[string]any) error
	// Get returns the report with the given id, or ErrReportNotFound.
	Get(ctx context.Context, id string) (*Result, error)
	// GetByDate returns the first report whose metadata date matches, or ErrReportNotFound.
	GetByDate(ctx context.Context, date string) (*Result, error)
	// All returns every stored report.
	All(ctx context.Context) ([]Result, error)
	// Query returns up to k reports ranked by embedding similarity.
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)
	// Count returns the number of stored reports.
	Count(ctx context.Context) (int, error)
	// Delete removes the report with the given id.
	Delete(ctx context.Context, id string) error
	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}
