package formula

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"go.uber.org/zap"
)

// rowBinding is the name under which the current row is exposed to a formula.
const rowBinding = "row"

// GojaEngine evaluates formulas as JavaScript expressions using the goja
// runtime. A formula reads its row through the `row` object, e.g.
// "row.price * row.quantity".
type GojaEngine struct {
	logger *zap.Logger
}

// NewGojaEngine creates a new goja-backed formula engine.
func NewGojaEngine(logger *zap.Logger) *GojaEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GojaEngine{logger: logger}
}

// Compile parses and compiles a formula into a reusable Program.
func (e *GojaEngine) Compile(formula string) (Program, error) {
	prog, err := goja.Compile("formula", formula, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile formula: %w", err)
	}
	e.logger.Debug("Compiled formula", zap.String("formula", formula))
	return &gojaProgram{prog: prog, source: formula}, nil
}

// ParseReferences walks the formula's AST and collects every field accessed on
// the row object, through either dot access (row.price) or a string subscript
// (row["unit price"]).
func (e *GojaEngine) ParseReferences(formula string) (References, error) {
	program, err := parser.ParseFile(nil, "formula", formula, 0)
	if err != nil {
		return References{}, fmt.Errorf("failed to parse formula: %w", err)
	}

	visitor := &referenceVisitor{fields: make(map[string]struct{})}
	ast.Walk(visitor, program)

	fields := make([]string, 0, len(visitor.fields))
	for field := range visitor.fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return References{Row: fields}, nil
}

// referenceVisitor collects row field accesses during an AST walk.
type referenceVisitor struct {
	fields map[string]struct{}
}

func (v *referenceVisitor) Enter(n ast.Node) ast.Visitor {
	switch expr := n.(type) {
	case *ast.DotExpression:
		if isRowIdentifier(expr.Left) {
			v.fields[expr.Identifier.Name.String()] = struct{}{}
		}
	case *ast.BracketExpression:
		if isRowIdentifier(expr.Left) {
			if lit, ok := expr.Member.(*ast.StringLiteral); ok {
				v.fields[lit.Value.String()] = struct{}{}
			}
		}
	}
	return v
}

func (v *referenceVisitor) Exit(n ast.Node) {}

func isRowIdentifier(expr ast.Expression) bool {
	ident, ok := expr.(*ast.Identifier)
	return ok && ident.Name.String() == rowBinding
}

// gojaProgram is a compiled formula bound to a lazily created runtime. The
// runtime is not safe for concurrent use, so evaluations are serialized.
type gojaProgram struct {
	prog   *goja.Program
	source string
	mu     sync.Mutex
	vm     *goja.Runtime
}

func (p *gojaProgram) run(ctx RowContext) (goja.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vm == nil {
		p.vm = goja.New()
	}
	if err := p.vm.Set(rowBinding, map[string]any(ctx)); err != nil {
		return nil, fmt.Errorf("failed to bind row: %w", err)
	}
	return p.vm.RunProgram(p.prog)
}

// Exec evaluates the formula against a row and returns the completion value.
func (p *gojaProgram) Exec(ctx RowContext) (any, error) {
	value, err := p.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("formula evaluation failed: %w", err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// ExecDebug evaluates the formula and, on failure, includes the thrown
// JavaScript value and the formula source in the error.
func (p *gojaProgram) ExecDebug(ctx RowContext) (any, error) {
	value, err := p.run(ctx)
	if err != nil {
		if ex, ok := err.(*goja.Exception); ok {
			return nil, fmt.Errorf("formula %q threw: %s", p.source, ex.String())
		}
		return nil, fmt.Errorf("formula %q failed: %w", p.source, err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}
