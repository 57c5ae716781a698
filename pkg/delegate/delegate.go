package delegate

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

// ErrNotFound is wrapped by stores when no renderer exists for a key.
var ErrNotFound = errors.New("delegate: renderer not found")

// Renderer turns the term stored under exprctx.KeyExpression into text.
type Renderer interface {
	Render(ctx exprctx.Reader) (string, error)
}

// RendererFunc adapts a function into a Renderer.
type RendererFunc func(ctx exprctx.Reader) (string, error)

// Render delegates to the underlying function.
func (fn RendererFunc) Render(ctx exprctx.Reader) (string, error) {
	return fn(ctx)
}

// Store is a keyed lookup of renderers.
type Store interface {
	Get(key string) (Renderer, error)
}

// StoreFunc adapts a function into a Store.
type StoreFunc func(key string) (Renderer, error)

// Get delegates to the underlying function.
func (fn StoreFunc) Get(key string) (Renderer, error) {
	return fn(key)
}

// Resolver locates the renderer for a term. The context is the one in effect
// for the term's parent so resolvers can make position aware choices.
type Resolver interface {
	Resolve(t term.Term, ctx exprctx.Reader) (Renderer, error)
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(t term.Term, ctx exprctx.Reader) (Renderer, error)

// Resolve delegates to the underlying function.
func (fn ResolverFunc) Resolve(t term.Term, ctx exprctx.Reader) (Renderer, error) {
	return fn(t, ctx)
}

// NotFoundError reports that no renderer is registered for a term type.
type NotFoundError struct {
	Type string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("delegate: no renderer for term type %q", e.Type)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// LookupError reports that the store failed while looking up a renderer.
type LookupError struct {
	Type string
	Err  error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("delegate: lookup for term type %q failed", e.Type)
	}
	return fmt.Sprintf("delegate: lookup for term type %q failed: %v", e.Type, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// StoreResolver resolves renderers by term type.
type StoreResolver struct {
	store Store
}

var _ Resolver = (*StoreResolver)(nil)

// NewStoreResolver wraps store.
func NewStoreResolver(store Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve looks the term's type up in the store.
func (r *StoreResolver) Resolve(t term.Term, _ exprctx.Reader) (Renderer, error) {
	if t == nil {
		return nil, &NotFoundError{Err: ErrNotFound}
	}
	return Lookup(r.store, t.Type())
}

// Lookup fetches key from store, classifying failures into NotFoundError and
// LookupError.
func Lookup(store Store, key string) (Renderer, error) {
	if store == nil {
		return nil, &LookupError{Type: key, Err: errors.New("delegate: store is nil")}
	}
	renderer, err := store.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Type: key, Err: err}
		}
		return nil, &LookupError{Type: key, Err: err}
	}
	if renderer == nil {
		return nil, &NotFoundError{Type: key, Err: ErrNotFound}
	}
	return renderer, nil
}

// CurrentTerm returns the term a delegate has been asked to render.
func CurrentTerm(ctx exprctx.Reader) (term.Term, error) {
	return CurrentTermAt(ctx, exprctx.KeyExpression)
}

// CurrentTermAt is CurrentTerm for engines configured with a custom key.
func CurrentTermAt(ctx exprctx.Reader, key string) (term.Term, error) {
	if ctx == nil {
		return nil, errors.New("delegate: context is nil")
	}
	raw, err := ctx.Get(key)
	if err != nil {
		return nil, err
	}
	t, ok := raw.(term.Term)
	if !ok {
		return nil, fmt.Errorf("delegate: context key %q holds %T, not a term", key, raw)
	}
	return t, nil
}

// Rekey adapts a renderer written against exprctx.KeyExpression to an engine
// that narrows the context under key.
func Rekey(r Renderer, key string) Renderer {
	if key == "" || key == exprctx.KeyExpression {
		return r
	}
	return RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := CurrentTermAt(ctx, key)
		if err != nil {
			return "", err
		}
		return r.Render(exprctx.With(ctx, exprctx.KeyExpression, current))
	})
}
