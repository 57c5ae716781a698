package render

import (
	"errors"
	"log/slog"

	"github.com/goliatone/go-exprender/internal/logging"
	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Engine renders expression trees. Composite expressions are expanded by the
// engine itself, leaf terms are handed to delegate renderers, and the child
// fragments of every composite are combined by the configured Compiler.
//
// An Engine holds no per-call state and can be shared between goroutines as
// long as each render uses its own context.
type Engine struct {
	resolver  delegate.Resolver
	compiler  Compiler
	logger    *slog.Logger
	key       string
	delegated map[string]struct{}
}

var _ delegate.Renderer = (*Engine)(nil)

// New constructs an Engine applying any provided options. Without options the
// engine resolves leaves against an empty registry and joins fragments
// without glue.
func New(options ...Option) *Engine {
	e := &Engine{
		key:       exprctx.KeyExpression,
		delegated: make(map[string]struct{}),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.applyDefaults()
	return e
}

func (e *Engine) applyDefaults() {
	if e.resolver == nil {
		e.resolver = delegate.NewStoreResolver(delegate.NewRegistry())
	}
	if e.compiler == nil {
		e.compiler = Join(nil)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
}

// ExpressionKey returns the context key holding the current expression.
func (e *Engine) ExpressionKey() string {
	return e.key
}

// Render reads the root expression from ctx and renders it. The root follows
// the same routing as any other term: delegated types and childless roots
// with a registered delegate go to the resolver. The engine satisfies delegate.Renderer, so it can itself be registered as the delegate
// for a term type handled by another engine.
func (e *Engine) Render(ctx exprctx.Reader) (string, error) {
	if ctx == nil {
		return "", newError(KindInvalidContext, nil)
	}

	raw, err := ctx.Get(e.key)
	if err != nil {
		kind := KindContextRead
		if exprctx.IsNotFound(err) {
			kind = KindMissingExpression
		}
		rerr := newError(kind, err)
		rerr.Key = e.key
		return "", rerr
	}

	expr, ok := raw.(term.Expression)
	if !ok {
		rerr := newError(KindInvalidExpression, nil)
		rerr.Key = e.key
		return "", rerr
	}

	if e.isDelegated(expr.Type()) {
		return e.delegateTerm(expr, ctx)
	}
	if len(expr.Terms()) == 0 {
		// A childless root is a leaf when a delegate exists for its type,
		// otherwise it is an empty composite.
		renderer, err := e.resolver.Resolve(expr, ctx)
		switch {
		case err == nil:
			e.logger.Debug("render term", "type", expr.Type())
			return renderer.Render(exprctx.With(ctx, e.key, expr))
		case !isNotFound(err):
			return "", e.delegateError(expr, err)
		}
	}
	return e.RenderExpression(expr, ctx)
}

// RenderExpression renders every child of expr in order and compiles the
// fragments. ctx should already point at expr; the engine narrows it to each
// child before recursing.
func (e *Engine) RenderExpression(expr term.Expression, ctx exprctx.Reader) (string, error) {
	if expr == nil {
		return "", newError(KindInvalidExpression, nil)
	}
	children := expr.Terms()
	fragments := make([]string, 0, len(children))
	for _, child := range children {
		out, err := e.RenderTerm(child, ctx)
		if err != nil {
			return "", err
		}
		fragments = append(fragments, out)
	}
	return e.compiler.Compile(expr, fragments, exprctx.With(ctx, e.key, expr))
}

// RenderTerm renders a single term. Composite expressions are expanded in
// place unless their type was registered with WithDelegatedTypes; everything
// else is rendered by the delegate resolved for the term. Delegate errors are
// returned untouched.
func (e *Engine) RenderTerm(t term.Term, ctx exprctx.Reader) (string, error) {
	if t == nil {
		return "", newError(KindInvalidExpression, nil)
	}
	if ctx == nil {
		return "", newError(KindInvalidContext, nil)
	}

	if expr, ok := t.(term.Expression); ok && !e.isDelegated(t.Type()) {
		if len(expr.Terms()) > 0 {
			return e.RenderExpression(expr, exprctx.With(ctx, e.key, expr))
		}
	}

	return e.delegateTerm(t, ctx)
}

func (e *Engine) delegateTerm(t term.Term, ctx exprctx.Reader) (string, error) {
	renderer, err := e.resolver.Resolve(t, ctx)
	if err != nil {
		return "", e.delegateError(t, err)
	}
	e.logger.Debug("render term", "type", t.Type())
	return renderer.Render(exprctx.With(ctx, e.key, t))
}

func (e *Engine) isDelegated(termType string) bool {
	_, ok := e.delegated[termType]
	return ok
}

func isNotFound(err error) bool {
	var notFound *delegate.NotFoundError
	return errors.As(err, &notFound) || errors.Is(err, delegate.ErrNotFound)
}

func (e *Engine) delegateError(t term.Term, err error) error {
	kind := KindDelegateLookup
	if isNotFound(err) {
		kind = KindDelegateNotFound
	}
	e.logger.Warn("delegate resolution failed", "type", t.Type(), "kind", string(kind), "error", err)
	rerr := newError(kind, err)
	rerr.TermType = t.Type()
	return rerr
}
