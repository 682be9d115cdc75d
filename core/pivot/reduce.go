package pivot

import "fmt"

// ValueUpdate replaces the value assignment at Index.
type ValueUpdate struct {
	Index int
	Value ValueAssignment
}

// ValueMove reorders a value assignment from one position to another.
type ValueMove struct {
	From int
	To   int
}

// Patch is one structural edit to an Assignments value. Exactly one member is
// populated. Patches are applied through Apply, which returns a new value and
// leaves its input untouched, so compile idempotence and pruning stay
// mechanically checkable.
type Patch struct {
	SetX         *StringOrList    `json:",omitempty"`
	SetLegend    *StringOrList    `json:",omitempty"`
	AddValue     *ValueAssignment `json:",omitempty"`
	UpdateValue  *ValueUpdate     `json:",omitempty"`
	RemoveValue  *int             `json:",omitempty"`
	MoveValue    *ValueMove       `json:",omitempty"`
	ExposeFilter *string          `json:",omitempty"`
	HideFilter   *string          `json:",omitempty"`
}

// Apply produces the assignments that result from applying the patch. The
// input is never mutated. Out-of-range indices return an error and leave the
// state unchanged semantics to the caller (the previous value stays current).
func Apply(a Assignments, p Patch) (Assignments, error) {
	out := a.Clone()

	switch {
	case p.SetX != nil:
		out.X = append(StringOrList(nil), (*p.SetX)...)
	case p.SetLegend != nil:
		out.Legend = append(StringOrList(nil), (*p.SetLegend)...)
	case p.AddValue != nil:
		out.Values = append(out.Values, p.AddValue.clone())
	case p.UpdateValue != nil:
		if p.UpdateValue.Index < 0 || p.UpdateValue.Index >= len(out.Values) {
			return a, fmt.Errorf("update value: index %d out of range", p.UpdateValue.Index)
		}
		out.Values[p.UpdateValue.Index] = p.UpdateValue.Value.clone()
	case p.RemoveValue != nil:
		i := *p.RemoveValue
		if i < 0 || i >= len(out.Values) {
			return a, fmt.Errorf("remove value: index %d out of range", i)
		}
		out.Values = append(out.Values[:i], out.Values[i+1:]...)
	case p.MoveValue != nil:
		from, to := p.MoveValue.From, p.MoveValue.To
		if from < 0 || from >= len(out.Values) || to < 0 || to >= len(out.Values) {
			return a, fmt.Errorf("move value: indices %d -> %d out of range", from, to)
		}
		v := out.Values[from]
		out.Values = append(out.Values[:from], out.Values[from+1:]...)
		rest := append([]ValueAssignment(nil), out.Values[to:]...)
		out.Values = append(append(out.Values[:to], v), rest...)
	case p.ExposeFilter != nil:
		field := *p.ExposeFilter
		for _, existing := range out.Filters {
			if existing == field {
				return out, nil
			}
		}
		out.Filters = append(out.Filters, field)
	case p.HideFilter != nil:
		field := *p.HideFilter
		var kept []string
		for _, existing := range out.Filters {
			if existing != field {
				kept = append(kept, existing)
			}
		}
		out.Filters = kept
	default:
		return a, fmt.Errorf("empty patch")
	}
	return out, nil
}
