package pivot

import (
	"encoding/json"
	"testing"

	"github.com/Mr-7mdan/Bayan-sub002/core/dateutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringOrList_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		value   StringOrList
		encoded string
	}{
		{"empty", nil, "null"},
		{"single_as_bare_string", StringOrList{"region"}, `"region"`},
		{"multiple_as_array", StringOrList{"region", "city"}, `["region","city"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, string(data))

			var decoded StringOrList
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.value, decoded)
		})
	}
}

func TestStringOrList_UnmarshalRejectsNonString(t *testing.T) {
	var s StringOrList
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &s))
}

func TestDatePartField_RoundTrip(t *testing.T) {
	name := DatePartField("OrderDate", dateutil.PartMonth)
	assert.Equal(t, "OrderDate (Month)", name)

	base, part, ok := ParseDatePartField(name)
	require.True(t, ok)
	assert.Equal(t, "OrderDate", base)
	assert.Equal(t, dateutil.PartMonth, part)
}

func TestParseDatePartField_RejectsNonDerivedNames(t *testing.T) {
	tests := []string{
		"OrderDate",
		"Revenue (USD)", // parenthesised, but not a known part
		"(Month)",
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, ok := ParseDatePartField(name)
			assert.False(t, ok)
		})
	}
}

func TestAssignments_Prune(t *testing.T) {
	a := Assignments{
		X:      StringOrList{"region", "ghost_dim"},
		Legend: StringOrList{"channel"},
		Values: []ValueAssignment{
			{Field: "revenue", Agg: AggSum},
			{Field: "ghost_measure", Agg: AggAvg},
			{MeasureID: "m-1", Agg: AggSum},
		},
		Filters: []string{"region", "ghost_filter"},
	}
	u := NewUniverse(
		[]string{"region", "channel", "revenue"},
		[]string{"OrderDate (Month)"},
	)

	pruned, removed := a.Prune(u)

	assert.Equal(t, StringOrList{"region"}, pruned.X)
	assert.Equal(t, StringOrList{"channel"}, pruned.Legend)
	require.Len(t, pruned.Values, 2)
	assert.Equal(t, "revenue", pruned.Values[0].Field)
	assert.Equal(t, "m-1", pruned.Values[1].MeasureID)
	assert.Equal(t, []string{"region"}, pruned.Filters)
	assert.Equal(t, []string{"ghost_dim", "ghost_filter", "ghost_measure"}, removed)

	// The input is untouched.
	assert.Equal(t, StringOrList{"region", "ghost_dim"}, a.X)
	assert.Len(t, a.Values, 3)
}

func TestApply_SetXAndLegend(t *testing.T) {
	a := Assignments{}

	x := StringOrList{"region"}
	next, err := Apply(a, Patch{SetX: &x})
	require.NoError(t, err)
	assert.Equal(t, x, next.X)
	assert.Nil(t, a.X)

	legend := StringOrList{"channel", "segment"}
	next, err = Apply(next, Patch{SetLegend: &legend})
	require.NoError(t, err)
	assert.Equal(t, legend, next.Legend)
}

func TestApply_ValueLifecycle(t *testing.T) {
	a := Assignments{}

	next, err := Apply(a, Patch{AddValue: &ValueAssignment{Field: "revenue", Agg: AggSum}})
	require.NoError(t, err)
	next, err = Apply(next, Patch{AddValue: &ValueAssignment{Field: "orders", Agg: AggCount}})
	require.NoError(t, err)
	require.Len(t, next.Values, 2)

	next, err = Apply(next, Patch{UpdateValue: &ValueUpdate{Index: 0, Value: ValueAssignment{Field: "revenue", Agg: AggAvg}}})
	require.NoError(t, err)
	assert.Equal(t, AggAvg, next.Values[0].Agg)

	next, err = Apply(next, Patch{MoveValue: &ValueMove{From: 0, To: 1}})
	require.NoError(t, err)
	assert.Equal(t, "orders", next.Values[0].Field)
	assert.Equal(t, "revenue", next.Values[1].Field)

	idx := 0
	next, err = Apply(next, Patch{RemoveValue: &idx})
	require.NoError(t, err)
	require.Len(t, next.Values, 1)
	assert.Equal(t, "revenue", next.Values[0].Field)
}

func TestApply_OutOfRangeKeepsPrevious(t *testing.T) {
	a := Assignments{Values: []ValueAssignment{{Field: "revenue"}}}

	idx := 5
	next, err := Apply(a, Patch{RemoveValue: &idx})
	assert.Error(t, err)
	assert.Equal(t, a, next)

	_, err = Apply(a, Patch{UpdateValue: &ValueUpdate{Index: -1}})
	assert.Error(t, err)
}

func TestApply_FilterExposure(t *testing.T) {
	a := Assignments{}

	field := "region"
	next, err := Apply(a, Patch{ExposeFilter: &field})
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, next.Filters)

	// Exposing twice is a no-op.
	next, err = Apply(next, Patch{ExposeFilter: &field})
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, next.Filters)

	next, err = Apply(next, Patch{HideFilter: &field})
	require.NoError(t, err)
	assert.Empty(t, next.Filters)
}

func TestApply_EmptyPatch(t *testing.T) {
	_, err := Apply(Assignments{}, Patch{})
	assert.Error(t, err)
}
