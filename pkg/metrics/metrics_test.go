package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

func TestResolverCountsLookupsAndRenders(t *testing.T) {
	c := New("test")
	reg := delegate.NewRegistry()
	reg.MustRegister("var", delegate.RendererFunc(func(exprctx.Reader) (string, error) {
		return "x", nil
	}))
	reg.MustRegister("bad", delegate.RendererFunc(func(exprctx.Reader) (string, error) {
		return "", errors.New("boom")
	}))
	resolver := c.Resolver(delegate.NewStoreResolver(reg))

	for i := 0; i < 2; i++ {
		r, err := resolver.Resolve(term.Var("a"), exprctx.Map{})
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if out, err := r.Render(exprctx.Map{}); err != nil || out != "x" {
			t.Fatalf("unexpected render %q (err=%v)", out, err)
		}
	}

	bad, err := resolver.Resolve(term.Leaf("bad", nil), exprctx.Map{})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if _, err := bad.Render(exprctx.Map{}); err == nil {
		t.Fatalf("expected delegate error")
	}

	if _, err := resolver.Resolve(term.Leaf("missing", nil), exprctx.Map{}); err == nil {
		t.Fatalf("expected resolve error")
	}

	if got := testutil.ToFloat64(c.lookups.WithLabelValues("var", outcomeOK)); got != 2 {
		t.Fatalf("expected 2 var lookups, got %v", got)
	}
	if got := testutil.ToFloat64(c.lookups.WithLabelValues("missing", outcomeNotFound)); got != 1 {
		t.Fatalf("expected 1 not found lookup, got %v", got)
	}
	if got := testutil.ToFloat64(c.renders.WithLabelValues("var", outcomeOK)); got != 2 {
		t.Fatalf("expected 2 var renders, got %v", got)
	}
	if got := testutil.ToFloat64(c.renders.WithLabelValues("bad", outcomeError)); got != 1 {
		t.Fatalf("expected 1 failed render, got %v", got)
	}
	if got := testutil.CollectAndCount(c.duration); got != 2 {
		t.Fatalf("expected histograms for 2 types, got %d", got)
	}
}

func TestStoreCountsLookupFailures(t *testing.T) {
	c := New("test")
	failing := delegate.StoreFunc(func(string) (delegate.Renderer, error) {
		return nil, errors.New("backend down")
	})

	if _, err := c.Store(failing).Get("var"); err == nil {
		t.Fatalf("expected store error")
	}
	if got := testutil.ToFloat64(c.lookups.WithLabelValues("var", outcomeError)); got != 1 {
		t.Fatalf("expected 1 failed lookup, got %v", got)
	}
}

func TestRegisterToleratesDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New("dup")
	if err := c.Register(reg); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}
	if err := c.Register(reg); err != nil {
		t.Fatalf("second Register returned error: %v", err)
	}
}
