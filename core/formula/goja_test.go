package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGojaEngine_CompileAndExec(t *testing.T) {
	engine := NewGojaEngine(nil)

	prog, err := engine.Compile("row.price * row.quantity")
	require.NoError(t, err)

	value, err := prog.Exec(RowContext{"price": 2.5, "quantity": 4})
	require.NoError(t, err)
	assert.Equal(t, 10.0, value)
}

func TestGojaEngine_StringConcat(t *testing.T) {
	engine := NewGojaEngine(nil)

	prog, err := engine.Compile(`row.first + " " + row.last`)
	require.NoError(t, err)

	value, err := prog.Exec(RowContext{"first": "Ada", "last": "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", value)
}

func TestGojaEngine_CompileError(t *testing.T) {
	engine := NewGojaEngine(nil)
	_, err := engine.Compile("row.price *")
	assert.Error(t, err)
}

func TestGojaEngine_ExecMissingFieldYieldsNaNNotError(t *testing.T) {
	engine := NewGojaEngine(nil)

	prog, err := engine.Compile("row.price * 2")
	require.NoError(t, err)

	value, err := prog.Exec(RowContext{})
	require.NoError(t, err)
	// undefined * 2 is NaN in JavaScript; the caller drops non-values.
	f, ok := value.(float64)
	require.True(t, ok)
	assert.NotEqual(t, f, f)
}

func TestGojaEngine_ExecDebugIncludesThrownValue(t *testing.T) {
	engine := NewGojaEngine(nil)

	prog, err := engine.Compile(`(() => { throw new Error("bad unit") })()`)
	require.NoError(t, err)

	_, err = prog.ExecDebug(RowContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad unit")
}

func TestGojaEngine_ParseReferences(t *testing.T) {
	engine := NewGojaEngine(nil)

	tests := []struct {
		name     string
		formula  string
		expected []string
	}{
		{"dot_access", "row.price * row.quantity", []string{"price", "quantity"}},
		{"bracket_access", `row["unit price"] + row.tax`, []string{"tax", "unit price"}},
		{"repeated_field_once", "row.a + row.a + row.a", []string{"a"}},
		{"no_references", "1 + 2", []string{}},
		{"other_objects_ignored", "Math.max(row.a, window.b)", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := engine.ParseReferences(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, refs.Row)
		})
	}
}

func TestGojaEngine_ParseReferencesError(t *testing.T) {
	engine := NewGojaEngine(nil)
	_, err := engine.ParseReferences("row.(")
	assert.Error(t, err)
}
