package delegate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

func static(out string) Renderer {
	return RendererFunc(func(exprctx.Reader) (string, error) { return out, nil })
}

func render(t *testing.T, r Renderer) string {
	t.Helper()
	out, err := r.Render(exprctx.Map{})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	return out
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("var", static("x")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	reg.MustRegister("string", static("s"))

	got, err := reg.Get("var")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if out := render(t, got); out != "x" {
		t.Fatalf("unexpected renderer output %q", out)
	}
	if !reg.Has("string") || reg.Has("number") {
		t.Fatalf("Has reported wrong membership")
	}
	if diff := cmp.Diff([]string{"string", "var"}, reg.List()); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("var", nil); err == nil {
		t.Fatalf("expected error for nil renderer")
	}
	if err := reg.Register("  ", static("x")); err == nil {
		t.Fatalf("expected error for empty type")
	}
	reg.MustRegister("var", static("x"))
	if err := reg.Register("var", static("y")); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := reg.Replace("var", static("y")); err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	if out := render(t, reg.MustGet("var")); out != "y" {
		t.Fatalf("expected replaced renderer, got %q", out)
	}
}

func TestRegistryGetMissingWrapsErrNotFound(t *testing.T) {
	_, err := NewRegistry().Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreResolverClassifiesFailures(t *testing.T) {
	boom := errors.New("backend down")
	store := StoreFunc(func(key string) (Renderer, error) {
		switch key {
		case "known":
			return static("ok"), nil
		case "broken":
			return nil, boom
		default:
			return nil, ErrNotFound
		}
	})
	resolver := NewStoreResolver(store)

	if r, err := resolver.Resolve(term.Leaf("known", nil), nil); err != nil || render(t, r) != "ok" {
		t.Fatalf("expected known renderer, got err=%v", err)
	}

	_, err := resolver.Resolve(term.Leaf("unknown", nil), nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Type != "unknown" || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFoundError for unknown, got %#v", err)
	}

	_, err = resolver.Resolve(term.Leaf("broken", nil), nil)
	var lookup *LookupError
	if !errors.As(err, &lookup) || !errors.Is(err, boom) {
		t.Fatalf("expected LookupError wrapping cause, got %#v", err)
	}
	if errors.As(err, &notFound) {
		t.Fatalf("store failure must not be reported as not found")
	}
}

func TestStoreResolverIsRepeatable(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("var", static("x"))
	resolver := NewStoreResolver(reg)

	for i := 0; i < 3; i++ {
		r, err := resolver.Resolve(term.Var("a"), nil)
		if err != nil || render(t, r) != "x" {
			t.Fatalf("resolve #%d failed: %v", i, err)
		}
	}
}

func TestMatcherResolverPriorityAndFallback(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("var", static("plain"))

	resolver := NewMatcherResolver(NewStoreResolver(reg))
	resolver.Register("low", 10, TypeIs("var"), static("low"))
	resolver.Register("high", 20, All(TypeIs("var"), ParentIs("eq")), static("high"))
	resolver.Register("tie", 10, TypeIs("var"), static("tie"))

	inEq := exprctx.Map{exprctx.KeyExpression: term.New("eq")}
	inAnd := exprctx.Map{exprctx.KeyExpression: term.New("and")}

	cases := []struct {
		name string
		term term.Term
		ctx  exprctx.Reader
		want string
	}{
		{name: "higher priority wins", term: term.Var("a"), ctx: inEq, want: "high"},
		{name: "tie keeps registration order", term: term.Var("a"), ctx: inAnd, want: "low"},
		{name: "fallback to store", term: term.Leaf("var2", nil), ctx: inAnd, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := resolver.Resolve(tc.term, tc.ctx)
			if tc.want == "" {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected not found from fallback, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if got := render(t, r); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	if name, ok := resolver.Rule(term.Var("a"), inEq); !ok || name != "high" {
		t.Fatalf("Rule = %q (ok=%v), want high", name, ok)
	}
}

func TestMatcherResolverWithoutFallback(t *testing.T) {
	_, err := NewMatcherResolver(nil).Resolve(term.Var("a"), nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Type != "var" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCurrentTerm(t *testing.T) {
	leaf := term.Var("a")
	got, err := CurrentTerm(exprctx.Map{exprctx.KeyExpression: leaf})
	if err != nil || got != leaf {
		t.Fatalf("expected leaf, got %v (err=%v)", got, err)
	}

	if _, err := CurrentTerm(exprctx.Map{exprctx.KeyExpression: 42}); err == nil {
		t.Fatalf("expected error for non-term value")
	}
	if _, err := CurrentTerm(exprctx.Map{}); !exprctx.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRekey(t *testing.T) {
	inner := RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		return current.Type(), nil
	})

	if got := Rekey(inner, exprctx.KeyExpression); got == nil {
		t.Fatalf("expected renderer")
	}

	out, err := Rekey(inner, "node").Render(exprctx.Map{"node": term.Var("a")})
	if err != nil || out != "var" {
		t.Fatalf("unexpected output %q (err=%v)", out, err)
	}

	if _, err := Rekey(inner, "node").Render(exprctx.Map{}); !exprctx.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
