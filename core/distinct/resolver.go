package distinct

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Mr-7mdan/Bayan-sub002/core/dateutil"
	"github.com/Mr-7mdan/Bayan-sub002/core/formula"
	"github.com/Mr-7mdan/Bayan-sub002/core/pivot"
	"github.com/Mr-7mdan/Bayan-sub002/core/predicate"
	"github.com/Mr-7mdan/Bayan-sub002/core/queryspec"
	"go.uber.org/zap"
)

// Config bounds the resolver's fallback stages.
type Config struct {
	// PageSize is the row count requested per page during a full-table scan.
	PageSize int
	// MaxPages caps the scan. Hitting the cap truncates the candidate list; it
	// is a soft bound on latency and memory, not an error.
	MaxPages int
	// SampleRows bounds the number of rows synthesized from per-column
	// samples for local evaluation.
	SampleRows int
}

// DefaultConfig returns the resolver's reference bounds.
func DefaultConfig() *Config {
	return &Config{
		PageSize:   5000,
		MaxPages:   50,
		SampleRows: 5,
	}
}

// Request identifies the field whose candidate values are wanted. Where is the
// widget's current filter context; the resolver strips the field's own
// constraints so a picker never restricts its own candidate list. Formula is
// set for custom columns with no server representation.
type Request struct {
	Source       string
	Field        string
	DatasourceID string
	Where        map[string]any
	Formula      string
}

// Resolver walks the fallback chain. Any client may be nil; a nil client
// simply skips its stage. Stages are tried strictly in priority order, never
// raced in parallel, to avoid speculative backend load.
type Resolver struct {
	distinct DistinctClient
	paged    PagedClient
	samples  SampleSource
	engine   formula.Engine
	config   *Config
	logger   *zap.Logger
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(distinct DistinctClient, paged PagedClient, samples SampleSource, engine formula.Engine, config *Config, logger *zap.Logger) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		distinct: distinct,
		paged:    paged,
		samples:  samples,
		engine:   engine,
		config:   config,
		logger:   logger,
	}
}

// Resolve produces the sorted, deduplicated candidate values for a field.
// Exhausting every stage yields an empty list and a nil error; the picker
// shows "no samples available" rather than surfacing a failure.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]string, error) {
	where := stripSelf(req.Where, req.Field)

	_, _, derived := pivot.ParseDatePartField(req.Field)
	serverBacked := req.Formula == "" && !derived

	if serverBacked {
		if values, ok := r.fromEndpoint(ctx, req, where); ok {
			return values, nil
		}
		if values, ok := r.fromScan(ctx, req, where); ok {
			return values, nil
		}
	}

	return r.fromLocalSamples(ctx, req), nil
}

// fromEndpoint is the fast path: the backend's DISTINCT endpoint.
func (r *Resolver) fromEndpoint(ctx context.Context, req Request, where map[string]any) ([]string, bool) {
	if r.distinct == nil {
		return nil, false
	}
	resp, err := r.distinct.Distinct(ctx, DistinctRequest{
		Source:       req.Source,
		Field:        req.Field,
		Where:        where,
		DatasourceID: req.DatasourceID,
	})
	if err != nil {
		r.logger.Debug("Distinct endpoint unavailable, falling back",
			zap.String("field", req.Field), zap.Error(err))
		return nil, false
	}
	return normalize(resp.Values), true
}

// fromScan pages through the raw table, accumulating a deduplicated set of the
// field's values. The scan stops on a short page, when the accumulated count
// reaches the reported total, or at the page ceiling.
func (r *Resolver) fromScan(ctx context.Context, req Request, where map[string]any) ([]string, bool) {
	if r.paged == nil {
		return nil, false
	}

	seen := make(map[string]struct{})
	total := -1
	fetched := 0

	for page := 0; page < r.config.MaxPages; page++ {
		resp, err := r.paged.Query(ctx, PagedRequest{
			Spec: queryspec.Spec{
				Source: req.Source,
				Select: []string{req.Field},
				Where:  where,
			},
			DatasourceID: req.DatasourceID,
			Limit:        r.config.PageSize,
			Offset:       page * r.config.PageSize,
			IncludeTotal: page == 0,
		})
		if err != nil {
			r.logger.Debug("Paged scan failed",
				zap.String("field", req.Field), zap.Int("page", page), zap.Error(err))
			// A failure before any rows arrive falls through to the next
			// stage; a partial scan still yields a usable candidate list.
			return sortedKeys(seen), fetched > 0
		}

		col := columnIndex(resp.Columns, req.Field)
		for _, row := range resp.Rows {
			if col < 0 || col >= len(row) {
				continue
			}
			if s, ok := coerceString(row[col]); ok {
				seen[s] = struct{}{}
			}
		}
		fetched += len(resp.Rows)

		if resp.TotalRows != nil {
			total = *resp.TotalRows
		}
		if len(resp.Rows) < r.config.PageSize {
			break
		}
		if total >= 0 && fetched >= total {
			break
		}
	}
	return sortedKeys(seen), true
}

// fromLocalSamples evaluates the field over whatever sample rows are locally
// available. Rows are synthesized by zipping per-column sample arrays to the
// longest available length, bounded by SampleRows.
func (r *Resolver) fromLocalSamples(ctx context.Context, req Request) []string {
	rows := r.sampleRows(ctx, req.DatasourceID)
	if len(rows) == 0 {
		return []string{}
	}

	switch {
	case req.Formula != "" && r.engine != nil:
		return r.evaluateFormula(req.Formula, rows)
	default:
		if base, part, ok := pivot.ParseDatePartField(req.Field); ok {
			return deriveDatePart(base, part, rows)
		}
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, row[req.Field])
		}
		return normalize(values)
	}
}

// sampleRows zips per-column samples into row maps.
func (r *Resolver) sampleRows(ctx context.Context, datasourceID string) []map[string]any {
	if r.samples == nil {
		return nil
	}
	columns, err := r.samples.Columns(ctx, datasourceID)
	if err != nil || len(columns) == 0 {
		return nil
	}

	byColumn := make(map[string][]any, len(columns))
	longest := 0
	for _, column := range columns {
		values, err := r.samples.Samples(ctx, datasourceID, column)
		if err != nil {
			continue
		}
		byColumn[column] = values
		if len(values) > longest {
			longest = len(values)
		}
	}
	if longest > r.config.SampleRows {
		longest = r.config.SampleRows
	}

	rows := make([]map[string]any, 0, longest)
	for i := 0; i < longest; i++ {
		row := make(map[string]any, len(byColumn))
		for column, values := range byColumn {
			if i < len(values) {
				row[column] = values[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// evaluateFormula runs the compiled formula over each sample row. The first
// failure is kept as a diagnostic; remaining rows are still evaluated.
func (r *Resolver) evaluateFormula(src string, rows []map[string]any) []string {
	prog, err := r.engine.Compile(src)
	if err != nil {
		r.logger.Warn("Formula failed to compile for sampling", zap.Error(err))
		return []string{}
	}

	var firstErr error
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		value, err := prog.ExecDebug(formula.RowContext(row))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		values = append(values, value)
	}
	if firstErr != nil {
		r.logger.Warn("Formula evaluation failed for some sample rows", zap.Error(firstErr))
	}
	return normalize(values)
}

func deriveDatePart(base string, part dateutil.DatePart, rows []map[string]any) []string {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		parsed, ok := dateutil.ParseFlexibleDate(row[base])
		if !ok {
			// Unparseable samples are excluded, never an error.
			continue
		}
		values = append(values, dateutil.Part(parsed, part))
	}
	return normalize(values)
}

// stripSelf removes every predicate key belonging to the requested field so
// the picker's candidate list is not restricted by its own current value.
func stripSelf(where map[string]any, field string) map[string]any {
	if len(where) == 0 {
		return nil
	}
	out := make(map[string]any, len(where))
	for key, value := range where {
		if predicate.BaseField(key) == field {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalize string-coerces, deduplicates and sorts values, dropping nils.
func normalize(values []any) []string {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		if s, ok := coerceString(value); ok {
			seen[s] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// coerceString renders a value for the picker. Nil values are dropped, never
// stringified as "null". Floats that carry an integral value render without a
// decimal point so 42.0 and 42 collapse to one candidate.
func coerceString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return coerceString(float64(v))
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

func columnIndex(columns []string, field string) int {
	for i, column := range columns {
		if column == field {
			return i
		}
	}
	return -1
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
