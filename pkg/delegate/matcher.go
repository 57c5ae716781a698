package delegate

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Matcher decides whether a rule's renderer should handle the supplied term.
type Matcher func(t term.Term, ctx exprctx.Reader) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	renderer Renderer
	order    int
}

// MatcherResolver selects renderers by inspecting the term and its context.
// Higher priority wins; ties fall back to registration order. Terms no rule
// claims are handed to the fallback resolver.
type MatcherResolver struct {
	mu       sync.RWMutex
	rules    []rule
	fallback Resolver
}

var _ Resolver = (*MatcherResolver)(nil)

// NewMatcherResolver constructs a resolver that defers to fallback when no
// rule matches. A nil fallback reports every unmatched term as not found.
func NewMatcherResolver(fallback Resolver) *MatcherResolver {
	return &MatcherResolver{fallback: fallback}
}

// Register adds a rule. Rules with an empty name, nil matcher or nil renderer
// are ignored.
func (r *MatcherResolver) Register(name string, priority int, matcher Matcher, renderer Renderer) {
	if r == nil || matcher == nil || renderer == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		renderer: renderer,
		order:    len(r.rules),
	})
}

// Resolve returns the renderer of the first matching rule.
func (r *MatcherResolver) Resolve(t term.Term, ctx exprctx.Reader) (Renderer, error) {
	if entry, ok := r.match(t, ctx); ok {
		return entry.renderer, nil
	}
	if r == nil || r.fallback == nil {
		typ := ""
		if t != nil {
			typ = t.Type()
		}
		return nil, &NotFoundError{Type: typ, Err: ErrNotFound}
	}
	return r.fallback.Resolve(t, ctx)
}

// Rule reports the name of the rule that would claim t, if any.
func (r *MatcherResolver) Rule(t term.Term, ctx exprctx.Reader) (string, bool) {
	entry, ok := r.match(t, ctx)
	return entry.name, ok
}

func (r *MatcherResolver) match(t term.Term, ctx exprctx.Reader) (rule, bool) {
	if r == nil || t == nil {
		return rule{}, false
	}
	r.mu.RLock()
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return rule{}, false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(t, ctx) {
			return entry, true
		}
	}
	return rule{}, false
}

// TypeIs matches terms of the given type.
func TypeIs(termType string) Matcher {
	return func(t term.Term, _ exprctx.Reader) bool {
		return t.Type() == termType
	}
}

// ParentIs matches terms whose enclosing expression, as recorded in the
// context, has the given type.
func ParentIs(parentType string) Matcher {
	return func(_ term.Term, ctx exprctx.Reader) bool {
		parent, err := CurrentTerm(ctx)
		if err != nil {
			return false
		}
		return parent.Type() == parentType
	}
}

// All matches when every matcher matches.
func All(matchers ...Matcher) Matcher {
	return func(t term.Term, ctx exprctx.Reader) bool {
		for _, m := range matchers {
			if m == nil || !m(t, ctx) {
				return false
			}
		}
		return true
	}
}
