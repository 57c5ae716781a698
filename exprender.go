// Package exprender renders expression trees to text. The root package
// bundles the most common flow: parse an infix expression, pick a dialect and
// render it with optional variable values.
package exprender

import (
	"errors"

	"github.com/goliatone/go-exprender/pkg/dialect"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/parse"
	"github.com/goliatone/go-exprender/pkg/render"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Engine aliases render.Engine so callers only need the root import for the
// quick start.
type Engine = render.Engine

// Node aliases term.Node, the concrete tree type produced by the parser.
type Node = term.Node

// New builds an engine for the named dialect ("go", "sql", "text", "html").
func New(dialectName string, options ...dialect.Option) (*Engine, error) {
	return dialect.New(dialectName, options...)
}

// Parse parses an infix expression into a tree.
func Parse(input string) (*Node, error) {
	return parse.Parse(input)
}

// RenderString parses input and renders it with engine. values is exposed to
// delegates under exprctx.KeyValues and may be nil.
func RenderString(engine *Engine, input string, values map[string]any) (string, error) {
	tree, err := parse.Parse(input)
	if err != nil {
		return "", err
	}
	return RenderTree(engine, tree, values)
}

// RenderTree renders a pre-built tree with engine.
func RenderTree(engine *Engine, tree term.Expression, values map[string]any) (string, error) {
	if engine == nil {
		return "", errors.New("exprender: engine is nil")
	}
	return engine.Render(Context(engine, tree, values))
}

// Context builds the render context for tree: the tree under the engine's
// expression key and values under exprctx.KeyValues.
func Context(engine *Engine, tree term.Expression, values map[string]any) exprctx.Map {
	key := exprctx.KeyExpression
	if engine != nil {
		key = engine.ExpressionKey()
	}
	ctx := exprctx.Map{key: tree}
	if values != nil {
		ctx[exprctx.KeyValues] = values
	}
	return ctx
}
