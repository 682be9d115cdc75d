package pivot

import "sort"

// Universe is the set of fields an assignment may reference: schema columns,
// custom columns, datasource-level transform outputs and derived date-part
// synthetic names.
type Universe map[string]struct{}

// NewUniverse builds a universe from any number of field-name groups.
func NewUniverse(groups ...[]string) Universe {
	u := make(Universe)
	for _, group := range groups {
		for _, field := range group {
			u[field] = struct{}{}
		}
	}
	return u
}

// Contains reports whether field is a member of the universe.
func (u Universe) Contains(field string) bool {
	_, ok := u[field]
	return ok
}

// Prune removes every reference to a field outside the universe from the
// assignments, cascading across x, legend, values and filters. It returns the
// pruned copy and the names that were removed; the receiver is unchanged. A
// recompute after a schema change must never keep dangling references.
func (a Assignments) Prune(u Universe) (Assignments, []string) {
	out := a.Clone()
	removed := make(map[string]struct{})

	keep := func(fields StringOrList) StringOrList {
		var kept StringOrList
		for _, field := range fields {
			if u.Contains(field) {
				kept = append(kept, field)
			} else {
				removed[field] = struct{}{}
			}
		}
		return kept
	}

	out.X = keep(out.X)
	out.Legend = keep(out.Legend)

	var values []ValueAssignment
	for _, v := range out.Values {
		// Measure references are resolved elsewhere; only direct field
		// references participate in universe pruning.
		if v.Field != "" && !u.Contains(v.Field) {
			removed[v.Field] = struct{}{}
			continue
		}
		values = append(values, v)
	}
	out.Values = values

	var filters []string
	for _, field := range out.Filters {
		if u.Contains(field) {
			filters = append(filters, field)
		} else {
			removed[field] = struct{}{}
		}
	}
	out.Filters = filters

	names := make([]string, 0, len(removed))
	for name := range removed {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names
}
