// Package distinct produces candidate values for a filter picker. Given a
// field and the current filter context it walks a prioritized fallback chain:
// a server-side DISTINCT endpoint when available, a paginated full-table scan,
// and finally local evaluation over cached sample rows for fields the server
// has no representation of (custom formulas and derived date parts).
package distinct

import (
	"context"
	"errors"

	"github.com/Mr-7mdan/Bayan-sub002/core/queryspec"
)

// ErrNoDistinctEndpoint is returned by a DistinctClient whose backend does not
// expose a DISTINCT endpoint. The resolver treats it as "advance to the next
// stage", not as a failure.
var ErrNoDistinctEndpoint = errors.New("distinct endpoint not available")

// DistinctRequest asks the backend for a field's distinct values under the
// given filter context.
type DistinctRequest struct {
	Source       string         `json:"source"`
	Field        string         `json:"field"`
	Where        map[string]any `json:"where,omitempty"`
	DatasourceID string         `json:"datasourceId,omitempty"`
}

// DistinctResponse carries the backend's distinct values. Entries may be
// strings, numbers or nil.
type DistinctResponse struct {
	Values []any `json:"values"`
}

// DistinctClient is the fast-path contract to the backend's DISTINCT endpoint.
type DistinctClient interface {
	Distinct(ctx context.Context, req DistinctRequest) (DistinctResponse, error)
}

// PagedRequest fetches one page of raw rows for a spec fragment.
type PagedRequest struct {
	Spec         queryspec.Spec `json:"spec"`
	DatasourceID string         `json:"datasourceId,omitempty"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
	IncludeTotal bool           `json:"includeTotal"`
}

// PagedResponse is one page of rows in column order.
type PagedResponse struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	TotalRows *int     `json:"totalRows,omitempty"`
}

// PagedClient is the fallback contract for scanning a table page by page.
type PagedClient interface {
	Query(ctx context.Context, req PagedRequest) (PagedResponse, error)
}

// SampleSource serves locally cached sample values for the offline stage.
type SampleSource interface {
	// Samples returns the cached sample values for one column, in cache order.
	Samples(ctx context.Context, datasourceID, field string) ([]any, error)
	// Columns lists the columns with cached samples for a datasource.
	Columns(ctx context.Context, datasourceID string) ([]string, error)
}
