// Package pivot defines the widget-agnostic assignment model a user edits when
// composing a visualization: which fields act as dimensions, which measures
// are aggregated, and which fields are exposed as filter chips. The model is
// the single source of truth for "what this widget visualizes" and is compiled
// into a backend query spec by the queryspec package.
package pivot

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Mr-7mdan/Bayan-sub002/core/dateutil"
)

// Agg is an aggregation applied to a value assignment.
type Agg string

// Supported aggregations.
const (
	AggNone     Agg = "none"
	AggCount    Agg = "count"
	AggDistinct Agg = "distinct"
	AggAvg      Agg = "avg"
	AggSum      Agg = "sum"
	AggMin      Agg = "min"
	AggMax      Agg = "max"
)

// Style selects how a series is painted.
type Style string

// Supported series styles.
const (
	StyleSolid    Style = "solid"
	StyleGradient Style = "gradient"
)

// SortBy selects what a series is ordered on.
type SortBy string

// Supported sort keys.
const (
	SortByX     SortBy = "x"
	SortByValue SortBy = "value"
)

// SortDirection is the direction of a series sort.
type SortDirection string

// Supported sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec orders a series by the x dimension or by its value.
type SortSpec struct {
	By        SortBy        `json:"by"`
	Direction SortDirection `json:"direction"`
}

// ConditionalRule colors a series value when its condition holds.
type ConditionalRule struct {
	Op    string `json:"op"`
	Value any    `json:"value"`
	Color string `json:"color,omitempty"`
}

// ValueAssignment is one measure the widget visualizes: a field (or a saved
// measure reference) plus its aggregation and presentation options.
type ValueAssignment struct {
	Field            string            `json:"field,omitempty"`
	MeasureID        string            `json:"measureId,omitempty"`
	Agg              Agg               `json:"agg"`
	Label            string            `json:"label,omitempty"`
	ColorToken       int               `json:"colorToken,omitempty"` // 1..5
	StackID          string            `json:"stackId,omitempty"`
	Style            Style             `json:"style,omitempty"`
	SecondaryAxis    bool              `json:"secondaryAxis,omitempty"`
	Sort             *SortSpec         `json:"sort,omitempty"`
	ConditionalRules []ConditionalRule `json:"conditionalRules,omitempty"`
}

// StringOrList holds zero, one or many dimension fields. It round-trips the
// UI's JSON encoding: absent for none, a bare string for one, an array for
// many.
type StringOrList []string

// MarshalJSON encodes a single element as a bare string and multiple elements
// as an array.
func (s StringOrList) MarshalJSON() ([]byte, error) {
	switch len(s) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(s[0])
	default:
		return json.Marshal([]string(s))
	}
}

// UnmarshalJSON accepts null, a bare string, or an array of strings.
func (s *StringOrList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringOrList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = StringOrList(many)
	return nil
}

// Assignments is the complete editable state for one widget.
type Assignments struct {
	X       StringOrList      `json:"x,omitempty"`
	Legend  StringOrList      `json:"legend,omitempty"`
	Values  []ValueAssignment `json:"values,omitempty"`
	Filters []string          `json:"filters,omitempty"`
}

// Clone returns a deep copy of the assignments.
func (a Assignments) Clone() Assignments {
	out := Assignments{
		X:      append(StringOrList(nil), a.X...),
		Legend: append(StringOrList(nil), a.Legend...),
	}
	if a.Values != nil {
		out.Values = make([]ValueAssignment, len(a.Values))
		for i, v := range a.Values {
			out.Values[i] = v.clone()
		}
	}
	if a.Filters != nil {
		out.Filters = append([]string(nil), a.Filters...)
	}
	return out
}

func (v ValueAssignment) clone() ValueAssignment {
	out := v
	if v.Sort != nil {
		sort := *v.Sort
		out.Sort = &sort
	}
	if v.ConditionalRules != nil {
		out.ConditionalRules = append([]ConditionalRule(nil), v.ConditionalRules...)
	}
	return out
}

// datePartField matches a derived date-part synthetic name, e.g.
// "OrderDate (Month)".
var datePartField = regexp.MustCompile(`^(.+) \((.+)\)$`)

// DatePartField builds the synthetic column name for a date part derived from
// a base date field.
func DatePartField(base string, part dateutil.DatePart) string {
	return fmt.Sprintf("%s (%s)", base, part)
}

// ParseDatePartField splits a synthetic date-part column name back into its
// base field and part. It reports ok=false for names that are not derived
// date-part fields.
func ParseDatePartField(name string) (string, dateutil.DatePart, bool) {
	m := datePartField.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	part := dateutil.DatePart(m[2])
	if !part.IsKnown() {
		return "", "", false
	}
	return m[1], part, true
}
