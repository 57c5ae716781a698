package render_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-exprender/internal/logging"
	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/render"
	"github.com/goliatone/go-exprender/pkg/term"
)

// valueRenderer renders the payload of the current term.
func valueRenderer() delegate.Renderer {
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		t, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(term.ValueOf(t)), nil
	})
}

func newEngine(t *testing.T, glue map[string]string, opts ...render.Option) *render.Engine {
	t.Helper()
	reg := delegate.NewRegistry()
	reg.MustRegister("lit", valueRenderer())
	base := []render.Option{
		render.WithStore(reg),
		render.WithGlue(render.NewOperatorGlue("", glue)),
	}
	return render.New(append(base, opts...)...)
}

func lit(v any) *term.Node { return term.Leaf("lit", v) }

func renderRoot(e *render.Engine, root term.Term) (string, error) {
	return e.Render(exprctx.Map{exprctx.KeyExpression: root})
}

func TestRenderEmptyExpressionIsEmpty(t *testing.T) {
	engine := newEngine(t, map[string]string{"and": " && "})

	got, err := renderRoot(engine, term.New("and"))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty fragment, got %q", got)
	}
}

func TestRenderSingleChildPassesThrough(t *testing.T) {
	engine := newEngine(t, map[string]string{"and": " && "})

	got, err := renderRoot(engine, term.New("and", lit("x")))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "x" {
		t.Fatalf("expected %q, got %q", "x", got)
	}
}

func TestRenderPreservesChildOrder(t *testing.T) {
	engine := newEngine(t, map[string]string{"seq": "-"})

	got, err := renderRoot(engine, term.New("seq", lit("a"), lit("b"), lit("c")))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "a-b-c" {
		t.Fatalf("expected a-b-c, got %q", got)
	}

	swapped, err := renderRoot(engine, term.New("seq", lit("c"), lit("a"), lit("b")))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if swapped != "c-a-b" {
		t.Fatalf("expected c-a-b, got %q", swapped)
	}
}

func TestRenderRecursiveComposition(t *testing.T) {
	engine := newEngine(t, map[string]string{"and": " && ", "or": " || "})

	got, err := renderRoot(engine, term.New("and", lit("1"), lit("2")))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "1 && 2" {
		t.Fatalf("expected %q, got %q", "1 && 2", got)
	}

	nested := term.New("or",
		term.New("and", lit("a"), lit("b")),
		lit("c"),
		term.New("and", lit("d"), term.New("or", lit("e"), lit("f"))),
	)
	got, err = renderRoot(engine, nested)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := "a && b || c || d && e || f"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	engine := newEngine(t, map[string]string{"and": " && "})
	build := func() term.Term {
		return term.New("and", lit("a"), term.New("and", lit("b"), lit("c")))
	}

	first, err := renderRoot(engine, build())
	if err != nil {
		t.Fatalf("first render returned error: %v", err)
	}
	second, err := renderRoot(engine, build())
	if err != nil {
		t.Fatalf("second render returned error: %v", err)
	}
	if first != second {
		t.Fatalf("renders differ: %q vs %q", first, second)
	}
}

func TestRenderMissingExpression(t *testing.T) {
	engine := newEngine(t, nil)

	got, err := engine.Render(exprctx.Map{"other": 1})
	if !errors.Is(err, render.ErrMissingExpression) {
		t.Fatalf("expected ErrMissingExpression, got %v", err)
	}
	if !exprctx.IsNotFound(err) {
		t.Fatalf("expected cause to be the not found condition, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected no output, got %q", got)
	}
}

func TestRenderNilContext(t *testing.T) {
	_, err := newEngine(t, nil).Render(nil)
	if !errors.Is(err, render.ErrInvalidContext) {
		t.Fatalf("expected ErrInvalidContext, got %v", err)
	}
}

func TestRenderContextReadFailure(t *testing.T) {
	boom := errors.New("store offline")
	ctx := exprctx.Func(func(string) (any, error) { return nil, boom })

	_, err := newEngine(t, nil).Render(ctx)
	if !errors.Is(err, render.ErrContextRead) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrContextRead wrapping cause, got %v", err)
	}
	if errors.Is(err, render.ErrMissingExpression) {
		t.Fatalf("store failure must not be reported as a missing expression")
	}
}

func TestRenderRejectsNonExpressionRoot(t *testing.T) {
	_, err := newEngine(t, nil).Render(exprctx.Map{exprctx.KeyExpression: "a && b"})
	if kind, ok := render.KindOf(err); !ok || kind != render.KindInvalidExpression {
		t.Fatalf("expected invalid expression, got %v", err)
	}
}

func TestRenderDelegateNotFound(t *testing.T) {
	engine := newEngine(t, map[string]string{"and": " && "})

	_, err := renderRoot(engine, term.New("and", lit("a"), term.Leaf("mystery", nil)))
	if !errors.Is(err, render.ErrDelegateNotFound) {
		t.Fatalf("expected ErrDelegateNotFound, got %v", err)
	}
	var notFound *delegate.NotFoundError
	if !errors.As(err, &notFound) || notFound.Type != "mystery" {
		t.Fatalf("expected NotFoundError cause for mystery, got %v", err)
	}
	if !errors.Is(err, delegate.ErrNotFound) {
		t.Fatalf("expected original not-found condition in chain")
	}
	var rerr *render.Error
	if !errors.As(err, &rerr) || rerr.TermType != "mystery" {
		t.Fatalf("expected render error to name the term type, got %#v", err)
	}
}

func TestRenderDelegateLookupFailure(t *testing.T) {
	boom := errors.New("registry unavailable")
	store := delegate.StoreFunc(func(string) (delegate.Renderer, error) { return nil, boom })
	engine := render.New(render.WithStore(store))

	_, err := renderRoot(engine, term.New("and", lit("a")))
	if !errors.Is(err, render.ErrDelegateLookup) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrDelegateLookup wrapping cause, got %v", err)
	}
	if errors.Is(err, render.ErrDelegateNotFound) {
		t.Fatalf("lookup failure must not be reported as not found")
	}
}

func TestRenderPropagatesDelegateErrorsUnmodified(t *testing.T) {
	boom := errors.New("template exploded")
	reg := delegate.NewRegistry()
	reg.MustRegister("lit", valueRenderer())
	reg.MustRegister("bad", delegate.RendererFunc(func(exprctx.Reader) (string, error) {
		return "partial", boom
	}))
	engine := render.New(render.WithStore(reg), render.WithGlue(render.StaticGlue(",")))

	got, err := renderRoot(engine, term.New("list", lit("a"), term.Leaf("bad", nil), lit("c")))
	if err != boom {
		t.Fatalf("expected delegate error returned as is, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected no partial output, got %q", got)
	}
}

func TestRenderNarrowsContextPerChild(t *testing.T) {
	var seen []string
	reg := delegate.NewRegistry()
	reg.MustRegister("lit", delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		seen = append(seen, fmt.Sprint(term.ValueOf(current)))
		locale, _ := ctx.Get("locale")
		return fmt.Sprintf("%v:%v", term.ValueOf(current), locale), nil
	}))
	engine := render.New(render.WithStore(reg), render.WithGlue(render.StaticGlue(" ")))

	root := term.New("seq", lit("a"), term.New("seq", lit("b"), lit("c")), lit("d"))
	ctx := exprctx.Map{exprctx.KeyExpression: root, "locale": "en"}

	got, err := engine.Render(ctx)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "a:en b:en c:en d:en" {
		t.Fatalf("unexpected output %q", got)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, seen); diff != "" {
		t.Fatalf("delegates saw stale expressions (-want +got):\n%s", diff)
	}
	if current, _ := ctx.Get(exprctx.KeyExpression); current != root {
		t.Fatalf("caller context was mutated")
	}
}

func TestResolverSeesParentContext(t *testing.T) {
	reg := delegate.NewRegistry()
	reg.MustRegister("lit", valueRenderer())

	resolver := delegate.NewMatcherResolver(delegate.NewStoreResolver(reg))
	resolver.Register("quoted-in-eq", 10, delegate.ParentIs("eq"), delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q", term.ValueOf(current)), nil
	}))

	engine := render.New(
		render.WithResolver(resolver),
		render.WithGlue(render.NewOperatorGlue(" ", map[string]string{"eq": " == ", "and": " && "})),
	)

	got, err := renderRoot(engine, term.New("and", lit("a"), term.New("eq", lit("b"), lit("c"))))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := `a && "b" == "c"`; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDelegatedTypesRecurseThroughEngine(t *testing.T) {
	reg := delegate.NewRegistry()
	reg.MustRegister("lit", valueRenderer())

	engine := render.New(
		render.WithStore(reg),
		render.WithGlue(render.NewOperatorGlue("", map[string]string{"and": " && "})),
		render.WithDelegatedTypes("call"),
	)
	reg.MustRegister("call", delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		args := make([]string, 0)
		for _, arg := range term.Children(current) {
			out, err := engine.RenderTerm(arg, ctx)
			if err != nil {
				return "", err
			}
			args = append(args, out)
		}
		return fmt.Sprintf("%v(%s)", term.ValueOf(current), strings.Join(args, ", ")), nil
	}))

	call := &term.Node{Kind: "call", Payload: "max", Children: []*term.Node{lit("a"), term.New("and", lit("b"), lit("c"))}}
	got, err := renderRoot(engine, term.New("and", call, lit("d")))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := "max(a, b && c) && d"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestEngineAsDelegateForSubLanguage(t *testing.T) {
	inner := newEngine(t, map[string]string{"sql": " AND "})

	reg := delegate.NewRegistry()
	reg.MustRegister("lit", valueRenderer())
	reg.MustRegister("sql", inner)
	outer := render.New(
		render.WithStore(reg),
		render.WithGlue(render.NewOperatorGlue("", map[string]string{"and": " && "})),
		render.WithDelegatedTypes("sql"),
	)

	sql := &term.Node{Kind: "sql", Children: []*term.Node{lit("x"), lit("y")}}
	got, err := renderRoot(outer, term.New("and", lit("a"), sql))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := "a && x AND y"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWithExpressionKey(t *testing.T) {
	engine := newEngine(t, map[string]string{"and": "+"}, render.WithExpressionKey("root"))

	got, err := engine.Render(exprctx.Map{"root": term.New("and", lit("1"), lit("2"))})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "1+2" {
		t.Fatalf("expected 1+2, got %q", got)
	}
	if engine.ExpressionKey() != "root" {
		t.Fatalf("unexpected key %q", engine.ExpressionKey())
	}
}

func TestWithLoggerReportsResolutionFailures(t *testing.T) {
	var buf bytes.Buffer
	engine := newEngine(t, nil, render.WithLogger(logging.NewWithWriter(&buf, slog.LevelDebug)))

	if _, err := renderRoot(engine, term.New("and", lit("a"), term.Leaf("ghost", nil))); err == nil {
		t.Fatalf("expected error")
	}
	out := buf.String()
	if !strings.Contains(out, "delegate resolution failed") || !strings.Contains(out, "type=ghost") {
		t.Fatalf("expected warn log for ghost, got %q", out)
	}
	if !strings.Contains(out, "render term") {
		t.Fatalf("expected debug log for rendered leaf, got %q", out)
	}
}

func TestRenderRootFollowsDelegation(t *testing.T) {
	reg := delegate.NewRegistry()
	reg.MustRegister("lit", valueRenderer())
	reg.MustRegister("call", delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v(%d args)", term.ValueOf(current), len(term.Children(current))), nil
	}))
	engine := render.New(
		render.WithStore(reg),
		render.WithGlue(render.StaticGlue("+")),
		render.WithDelegatedTypes("call"),
	)

	tests := []struct {
		name string
		root *term.Node
		want string
	}{
		{
			name: "delegated composite root",
			root: &term.Node{Kind: "call", Payload: "max", Children: []*term.Node{lit("a"), lit("b")}},
			want: "max(2 args)",
		},
		{
			name: "leaf root with delegate",
			root: lit("a"),
			want: "a",
		},
		{
			name: "empty composite without delegate",
			root: term.New("and"),
			want: "",
		},
		{
			name: "composite root",
			root: term.New("and", lit("a"), lit("b")),
			want: "a+b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderRoot(engine, tt.root)
			if err != nil {
				t.Fatalf("Render returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderRootLeafLookupFailure(t *testing.T) {
	boom := errors.New("registry unavailable")
	store := delegate.StoreFunc(func(string) (delegate.Renderer, error) { return nil, boom })
	engine := render.New(render.WithStore(store))

	_, err := renderRoot(engine, lit("a"))
	if !errors.Is(err, render.ErrDelegateLookup) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrDelegateLookup wrapping cause, got %v", err)
	}
}
