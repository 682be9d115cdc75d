package queryspec

import (
	"sort"

	"github.com/Mr-7mdan/Bayan-sub002/core/pivot"
	"github.com/Mr-7mdan/Bayan-sub002/core/predicate"
	"go.uber.org/zap"
)

// Result reports compile metadata the caller needs for bookkeeping.
type Result struct {
	// RemovedFilters lists fields whose predicates were pruned because they
	// are no longer exposed as filters. The caller flips the matching
	// "show in filter bar" overrides off so a removed filter cannot leave an
	// orphaned, always-on exposure flag.
	RemovedFilters []string
}

// Compiler turns pivot assignments plus widget-type policy into a Spec. It is
// stateless apart from its configuration: the data source the widget reads and
// the saved-measure catalog (measure id to formula) used to resolve measure
// references.
type Compiler struct {
	source   string
	measures map[string]string
	logger   *zap.Logger
}

// NewCompiler creates a compiler for one data source. measures maps saved
// measure ids to their formulas and may be nil.
func NewCompiler(source string, measures map[string]string, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{source: source, measures: measures, logger: logger}
}

// Compile maps assignments and widget policy into a new Spec. It is a pure
// function of its inputs: equal inputs produce deeply equal output, and
// neither input is mutated. prev supplies the previous spec's where clause,
// which is carried over minus predicates whose field is no longer exposed as
// a filter; a newly exposed filter chip adds nothing until it holds a value.
func (c *Compiler) Compile(a pivot.Assignments, w Widget, prev *Spec) (Spec, Result) {
	out := Spec{
		Source: c.source,
		X:      append(pivot.StringOrList(nil), a.X...),
		Legend: append(pivot.StringOrList(nil), a.Legend...),
	}

	var result Result
	out.Where, result.RemovedFilters = carryWhere(prev, a.Filters)

	switch w.Kind {
	case WidgetKPI:
		c.compileKPI(&out, a)
	case WidgetChart:
		c.compileSeries(&out, a)
		if w.Chart != nil {
			out.GroupBy = w.Chart.XGrouping
		}
	case WidgetTable:
		// Raw rows pass through; legend is the explicit, order-preserving
		// column list.
		out.Select = append([]string(nil), a.Legend...)
	case WidgetPivotTable:
		c.compileSeries(&out, a)
		if w.Pivot != nil {
			out.GroupBy = w.Pivot.XGrouping
		}
	default:
		c.logger.Warn("Unknown widget kind, compiling dimensions only", zap.String("kind", string(w.Kind)))
	}

	return out, result
}

// compileKPI applies the single-aggregator policy: a KPI never carries series,
// and exactly one of measure or y/agg is set.
func (c *Compiler) compileKPI(out *Spec, a pivot.Assignments) {
	if len(a.Values) == 0 {
		return
	}
	v := a.Values[0]
	if v.MeasureID != "" {
		formula, ok := c.measures[v.MeasureID]
		if !ok {
			c.logger.Warn("Unknown measure reference", zap.String("measureId", v.MeasureID))
			return
		}
		out.Measure = formula
		return
	}
	out.Y = v.Field
	out.Agg = v.Agg
}

// compileSeries wraps every value assignment in a series entry. Even a single
// value uses the series shape so the rendering side consumes per-series data
// identically regardless of count.
func (c *Compiler) compileSeries(out *Spec, a pivot.Assignments) {
	for _, v := range a.Values {
		entry := SeriesSpec{
			Agg:              v.Agg,
			Label:            v.Label,
			ColorToken:       v.ColorToken,
			StackID:          v.StackID,
			Style:            v.Style,
			SecondaryAxis:    v.SecondaryAxis,
			Sort:             cloneSort(v.Sort),
			ConditionalRules: append([]pivot.ConditionalRule(nil), v.ConditionalRules...),
		}
		if v.MeasureID != "" {
			formula, ok := c.measures[v.MeasureID]
			if !ok {
				c.logger.Warn("Unknown measure reference, skipping series", zap.String("measureId", v.MeasureID))
				continue
			}
			entry.Measure = formula
		} else {
			entry.Y = v.Field
		}
		out.Series = append(out.Series, entry)
	}
}

func cloneSort(s *pivot.SortSpec) *pivot.SortSpec {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// carryWhere copies the previous spec's where clause, dropping every key whose
// base field is no longer in the exposed-filter list, and reports the distinct
// base fields that were dropped.
func carryWhere(prev *Spec, filters []string) (map[string]any, []string) {
	if prev == nil || len(prev.Where) == 0 {
		return nil, nil
	}

	exposed := make(map[string]struct{}, len(filters))
	for _, field := range filters {
		exposed[field] = struct{}{}
	}

	where := make(map[string]any, len(prev.Where))
	removed := make(map[string]struct{})
	for key, value := range prev.Where {
		base := predicate.BaseField(key)
		if _, ok := exposed[base]; ok {
			where[key] = value
		} else {
			removed[base] = struct{}{}
		}
	}
	if len(where) == 0 {
		where = nil
	}

	var names []string
	for name := range removed {
		names = append(names, name)
	}
	sort.Strings(names)
	return where, names
}
