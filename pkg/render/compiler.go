package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Compiler combines the rendered fragments of an expression's children into a
// single fragment. Implementations must not reorder or mutate fragments.
type Compiler interface {
	Compile(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error)
}

// CompilerFunc adapts a function into a Compiler.
type CompilerFunc func(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error)

// Compile delegates to the underlying function.
func (fn CompilerFunc) Compile(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
	return fn(expr, fragments, ctx)
}

// GlueSelector picks the separator placed between fragments. The glue may
// depend on the expression type and on the context.
type GlueSelector interface {
	Glue(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error)
}

// GlueFunc adapts a function into a GlueSelector.
type GlueFunc func(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error)

// Glue delegates to the underlying function.
func (fn GlueFunc) Glue(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
	return fn(expr, fragments, ctx)
}

// StaticGlue always returns the same separator.
type StaticGlue string

// Glue returns the separator.
func (g StaticGlue) Glue(term.Expression, []string, exprctx.Reader) (string, error) {
	return string(g), nil
}

// JoinCompiler joins fragments with the glue chosen by Glue. No fragments
// compile to the empty string and a single fragment is returned unchanged; the
// glue selector is not consulted in either case.
type JoinCompiler struct {
	Glue GlueSelector
}

var _ Compiler = (*JoinCompiler)(nil)

// Join returns a JoinCompiler using glue.
func Join(glue GlueSelector) *JoinCompiler {
	return &JoinCompiler{Glue: glue}
}

// Compile implements Compiler.
func (c *JoinCompiler) Compile(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
	switch len(fragments) {
	case 0:
		return "", nil
	case 1:
		return fragments[0], nil
	}
	glue := ""
	if c != nil && c.Glue != nil {
		selected, err := c.Glue.Glue(expr, fragments, ctx)
		if err != nil {
			return "", err
		}
		glue = selected
	}
	return strings.Join(fragments, glue), nil
}

type literalOperator string

func (o literalOperator) String() string { return string(o) }

// OperatorGlue maps expression types to operator strings, falling back to a
// default for unknown types.
type OperatorGlue struct {
	mu        sync.RWMutex
	operators map[string]fmt.Stringer
	fallback  string
}

var _ GlueSelector = (*OperatorGlue)(nil)

// NewOperatorGlue builds an OperatorGlue seeded with operators.
func NewOperatorGlue(fallback string, operators map[string]string) *OperatorGlue {
	g := &OperatorGlue{
		operators: make(map[string]fmt.Stringer, len(operators)),
		fallback:  fallback,
	}
	for termType, op := range operators {
		g.operators[termType] = literalOperator(op)
	}
	return g
}

// SetOperator assigns the operator for termType. The operator must be a
// string or a fmt.Stringer, which is evaluated each time glue is selected.
func (g *OperatorGlue) SetOperator(termType string, operator any) error {
	var value fmt.Stringer
	switch op := operator.(type) {
	case string:
		value = literalOperator(op)
	case fmt.Stringer:
		value = op
	default:
		return fmt.Errorf("%w: got %T", ErrInvalidOperator, operator)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.operators == nil {
		g.operators = make(map[string]fmt.Stringer)
	}
	g.operators[termType] = value
	return nil
}

// Operator returns the operator registered for termType.
func (g *OperatorGlue) Operator(termType string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	op, ok := g.operators[termType]
	if !ok {
		return "", false
	}
	return op.String(), true
}

// Glue implements GlueSelector.
func (g *OperatorGlue) Glue(expr term.Expression, _ []string, _ exprctx.Reader) (string, error) {
	if op, ok := g.Operator(expr.Type()); ok {
		return op, nil
	}
	return g.fallback, nil
}

// DefaultGluePrefix is the context key prefix read by ContextGlue.
const DefaultGluePrefix = "glue."

// ContextGlue lets the render context override glue per expression type via
// keys such as "glue.and". Types without an override use Fallback.
type ContextGlue struct {
	Prefix   string
	Fallback GlueSelector
}

var _ GlueSelector = ContextGlue{}

// Glue implements GlueSelector.
func (g ContextGlue) Glue(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
	if ctx != nil {
		prefix := g.Prefix
		if prefix == "" {
			prefix = DefaultGluePrefix
		}
		raw, err := ctx.Get(prefix + expr.Type())
		switch {
		case err == nil:
			switch v := raw.(type) {
			case string:
				return v, nil
			case fmt.Stringer:
				return v.String(), nil
			default:
				return "", fmt.Errorf("%w: context glue for %q is %T", ErrInvalidOperator, expr.Type(), raw)
			}
		case !exprctx.IsNotFound(err):
			return "", err
		}
	}
	if g.Fallback == nil {
		return "", nil
	}
	return g.Fallback.Glue(expr, fragments, ctx)
}

// CompilerSet dispatches to a per-type compiler, using Fallback for types
// without one.
type CompilerSet struct {
	mu        sync.RWMutex
	compilers map[string]Compiler
	fallback  Compiler
}

var _ Compiler = (*CompilerSet)(nil)

// NewCompilerSet builds a CompilerSet around fallback.
func NewCompilerSet(fallback Compiler) *CompilerSet {
	return &CompilerSet{
		compilers: make(map[string]Compiler),
		fallback:  fallback,
	}
}

// Set registers compiler for termType. A nil compiler removes the entry.
func (s *CompilerSet) Set(termType string, compiler Compiler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if compiler == nil {
		delete(s.compilers, termType)
		return
	}
	s.compilers[termType] = compiler
}

// Compile implements Compiler.
func (s *CompilerSet) Compile(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
	s.mu.RLock()
	compiler, ok := s.compilers[expr.Type()]
	s.mu.RUnlock()
	if !ok {
		compiler = s.fallback
	}
	if compiler == nil {
		compiler = Join(nil)
	}
	return compiler.Compile(expr, fragments, ctx)
}

// WrapCompiler surrounds the output of Inner with Prefix and Suffix. It is
// meant for unary and grouping forms such as negation or parentheses.
type WrapCompiler struct {
	Prefix string
	Suffix string
	Inner  Compiler
}

var _ Compiler = WrapCompiler{}

// Compile implements Compiler.
func (c WrapCompiler) Compile(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
	if len(fragments) == 0 {
		return "", nil
	}
	inner := c.Inner
	if inner == nil {
		inner = Join(nil)
	}
	out, err := inner.Compile(expr, fragments, ctx)
	if err != nil {
		return "", err
	}
	return c.Prefix + out + c.Suffix, nil
}
