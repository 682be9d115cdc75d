// Package queryspec defines the backend-facing declarative query contract and
// the compiler that produces it from a widget's pivot assignments. The spec is
// structured data interpreted by the execution backend; no SQL text is ever
// generated here, and field names pass through verbatim.
package queryspec

import (
	"github.com/Mr-7mdan/Bayan-sub002/core/pivot"
)

// DateGrouping buckets a date-typed x dimension.
type DateGrouping string

// Supported date groupings.
const (
	GroupNone    DateGrouping = "none"
	GroupHour    DateGrouping = "hour"
	GroupDay     DateGrouping = "day"
	GroupWeek    DateGrouping = "week"
	GroupMonth   DateGrouping = "month"
	GroupQuarter DateGrouping = "quarter"
	GroupYear    DateGrouping = "year"
)

// SeriesSpec is one aggregated series in a multi-measure spec. Exactly one of
// Y (a raw field) or Measure (a formula) is set.
type SeriesSpec struct {
	Y                string                  `json:"y,omitempty"`
	Measure          string                  `json:"measure,omitempty"`
	Agg              pivot.Agg               `json:"agg,omitempty"`
	Label            string                  `json:"label,omitempty"`
	ColorToken       int                     `json:"colorToken,omitempty"`
	StackID          string                  `json:"stackId,omitempty"`
	Style            pivot.Style             `json:"style,omitempty"`
	SecondaryAxis    bool                    `json:"secondaryAxis,omitempty"`
	Sort             *pivot.SortSpec         `json:"sort,omitempty"`
	ConditionalRules []pivot.ConditionalRule `json:"conditionalRules,omitempty"`
}

// Spec is the declarative query consumed by the execution backend.
//
// Exactly one measure shape is populated: Series for multi-measure charts,
// the top-level Y/Agg or Measure for single-aggregate widgets, or neither
// when the widget carries no measures. Where stores one field's filter state
// as operator-suffixed sibling keys (see the predicate package).
type Spec struct {
	Source  string             `json:"source"`
	Select  []string           `json:"select,omitempty"`
	X       pivot.StringOrList `json:"x,omitempty"`
	Legend  pivot.StringOrList `json:"legend,omitempty"`
	Series  []SeriesSpec       `json:"series,omitempty"`
	Y       string             `json:"y,omitempty"`
	Agg     pivot.Agg          `json:"agg,omitempty"`
	Measure string             `json:"measure,omitempty"`
	Where   map[string]any     `json:"where,omitempty"`
	GroupBy DateGrouping       `json:"groupBy,omitempty"`
}

// WidgetKind tags the widget type a spec is compiled for.
type WidgetKind string

// Supported widget kinds.
const (
	WidgetKPI        WidgetKind = "kpi"
	WidgetChart      WidgetKind = "chart"
	WidgetTable      WidgetKind = "table"
	WidgetPivotTable WidgetKind = "pivot"
)

// KPIOptions configures a single-number widget.
type KPIOptions struct {
	DeltaMode      string `json:"deltaMode,omitempty"`
	DeltaDateField string `json:"deltaDateField,omitempty"`
}

// ChartOptions configures a chart widget.
type ChartOptions struct {
	ChartType string       `json:"chartType,omitempty"`
	Stacked   bool         `json:"stacked,omitempty"`
	XGrouping DateGrouping `json:"xGrouping,omitempty"`
}

// TableOptions configures a raw data table widget.
type TableOptions struct {
	PageSize int `json:"pageSize,omitempty"`
}

// PivotTableOptions configures a pivot table widget.
type PivotTableOptions struct {
	ShowTotals bool         `json:"showTotals,omitempty"`
	XGrouping  DateGrouping `json:"xGrouping,omitempty"`
}

// Widget is a tagged union of the widget types the compiler understands. The
// options variant matching Kind is populated; the compiler switches on the tag
// rather than probing optional fields.
type Widget struct {
	Kind  WidgetKind         `json:"kind"`
	KPI   *KPIOptions        `json:",omitempty"`
	Chart *ChartOptions      `json:",omitempty"`
	Table *TableOptions      `json:",omitempty"`
	Pivot *PivotTableOptions `json:",omitempty"`
}
