// Package formula defines the contract between the query pipeline and the
// expression engine that powers custom columns, plus a JavaScript
// implementation of that contract. The pipeline itself treats the engine as a
// black box: it compiles a formula into an evaluable program and asks which
// row fields the formula references.
package formula

// RowContext carries one row's field values into a formula evaluation.
type RowContext map[string]any

// References lists the fields a formula reads.
type References struct {
	Row []string `json:"row"`
}

// Program is a compiled, reusable formula.
type Program interface {
	// Exec evaluates the formula against a row.
	Exec(ctx RowContext) (any, error)
	// ExecDebug evaluates like Exec but returns richer error detail, for use
	// in previews where the first failure is surfaced as a diagnostic.
	ExecDebug(ctx RowContext) (any, error)
}

// Engine compiles formulas and extracts their field references.
type Engine interface {
	Compile(formula string) (Program, error)
	ParseReferences(formula string) (References, error)
}
