// Package dialect wires render engines for a few common target languages.
//
// Every dialect understands the term types produced by the parse package:
// and, or, not, eq, neq, group, call, var and the literal types.
package dialect

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/metrics"
	"github.com/goliatone/go-exprender/pkg/render"
	"github.com/goliatone/go-exprender/pkg/renderers/basic"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Dialect names.
const (
	Go   = "go"
	SQL  = "sql"
	Text = "text"
)

// Definition describes how one dialect renders each term type.
type Definition struct {
	Name      string
	Operators map[string]string
	NotPrefix string
	// NotBindsTight marks a negation prefix that binds tighter than the
	// dialect's comparison and logical operators. Binary operands of not are
	// then parenthesised so the output keeps the tree's meaning.
	NotBindsTight bool
	Strings       basic.Formatter
	Literals      basic.Formatter
	Null          string
	// Leaves builds the leaf delegates. When nil the delegates are derived
	// from the formatters above.
	Leaves func(def Definition, engine *render.Engine, values bool) (map[string]delegate.Renderer, error)
}

var definitions = map[string]Definition{
	Go: {
		Name: Go,
		Operators: map[string]string{
			term.TypeAnd: " && ",
			term.TypeOr:  " || ",
			term.TypeEq:  " == ",
			term.TypeNeq: " != ",
		},
		NotPrefix:     "!",
		NotBindsTight: true,
		Strings:       basic.GoQuote,
		Literals:      basic.Raw,
		Null:          "nil",
	},
	SQL: {
		Name: SQL,
		Operators: map[string]string{
			term.TypeAnd: " AND ",
			term.TypeOr:  " OR ",
			term.TypeEq:  " = ",
			term.TypeNeq: " <> ",
		},
		NotPrefix: "NOT ",
		Strings:   basic.SQLQuote,
		Literals:  basic.SQLQuote,
		Null:      "NULL",
	},
	Text: {
		Name: Text,
		Operators: map[string]string{
			term.TypeAnd: " and ",
			term.TypeOr:  " or ",
			term.TypeEq:  " is ",
			term.TypeNeq: " is not ",
		},
		NotPrefix: "not ",
		Strings:   basic.DoubleQuote,
		Literals:  basic.Raw,
		Null:      "nothing",
	},
}

// Names lists the built-in dialects in sorted order.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the definition registered under name.
func Lookup(name string) (Definition, bool) {
	def, ok := definitions[strings.ToLower(strings.TrimSpace(name))]
	return def, ok
}

// Option customises a dialect engine.
type Option func(*options)

type options struct {
	values    bool
	logger    *slog.Logger
	metrics   *metrics.Collector
	overrides map[string]string
	extra     map[string]delegate.Renderer
	key       string
}

// WithValues renders variables as their value from the context's values map
// when one is present, formatted as a literal of the dialect.
func WithValues() Option {
	return func(o *options) {
		o.values = true
	}
}

// WithLogger passes logger to the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics instruments delegate resolution with collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = collector
	}
}

// WithGlueOverrides replaces operator glue per term type.
func WithGlueOverrides(overrides map[string]string) Option {
	return func(o *options) {
		if len(overrides) == 0 {
			return
		}
		if o.overrides == nil {
			o.overrides = make(map[string]string, len(overrides))
		}
		for k, v := range overrides {
			o.overrides[strings.TrimSpace(k)] = v
		}
	}
}

// WithExpressionKey changes the context key holding the current term.
func WithExpressionKey(key string) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithDelegate registers or replaces the delegate used for termType.
func WithDelegate(termType string, renderer delegate.Renderer) Option {
	return func(o *options) {
		if renderer == nil {
			return
		}
		if o.extra == nil {
			o.extra = make(map[string]delegate.Renderer)
		}
		o.extra[strings.TrimSpace(termType)] = renderer
	}
}

// New builds an engine for the named dialect.
func New(name string, opts ...Option) (*render.Engine, error) {
	def, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return Build(def, opts...)
}

// Build wires an engine from def. It is exported so callers can derive a
// dialect from a built-in definition.
func Build(def Definition, opts ...Option) (*render.Engine, error) {
	cfg := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	glue := render.NewOperatorGlue("", def.Operators)
	for termType, op := range cfg.overrides {
		if err := glue.SetOperator(termType, op); err != nil {
			return nil, fmt.Errorf("dialect: %s: %w", def.Name, err)
		}
	}
	join := render.Join(render.ContextGlue{Fallback: glue})

	compilers := render.NewCompilerSet(join)
	compilers.Set(term.TypeNot, notCompiler(def, join))
	compilers.Set(term.TypeGroup, render.WrapCompiler{Prefix: "(", Suffix: ")", Inner: join})

	registry := delegate.NewRegistry()
	var resolver delegate.Resolver = delegate.NewStoreResolver(registry)
	if cfg.metrics != nil {
		resolver = cfg.metrics.Resolver(resolver)
	}

	engine := render.New(
		render.WithResolver(resolver),
		render.WithCompiler(compilers),
		render.WithLogger(cfg.logger),
		render.WithDelegatedTypes(term.TypeCall),
		render.WithExpressionKey(cfg.key),
	)

	leaves := def.Leaves
	if leaves == nil {
		leaves = defaultLeaves
	}
	delegates, err := leaves(def, engine, cfg.values)
	if err != nil {
		return nil, err
	}
	for termType, renderer := range cfg.extra {
		delegates[termType] = renderer
	}
	for termType, renderer := range delegates {
		if err := registry.Register(termType, delegate.Rekey(renderer, engine.ExpressionKey())); err != nil {
			return nil, fmt.Errorf("dialect: %s: %w", def.Name, err)
		}
	}

	return engine, nil
}

// binaryTypes are rendered as infix operators and need grouping under a
// tight negation prefix.
var binaryTypes = map[string]struct{}{
	term.TypeAnd: {},
	term.TypeOr:  {},
	term.TypeEq:  {},
	term.TypeNeq: {},
}

func notCompiler(def Definition, inner render.Compiler) render.Compiler {
	plain := render.WrapCompiler{Prefix: def.NotPrefix, Inner: inner}
	if !def.NotBindsTight {
		return plain
	}
	grouped := render.WrapCompiler{Prefix: def.NotPrefix + "(", Suffix: ")", Inner: inner}
	return render.CompilerFunc(func(expr term.Expression, fragments []string, ctx exprctx.Reader) (string, error) {
		for _, child := range expr.Terms() {
			if _, ok := binaryTypes[child.Type()]; ok && term.IsComposite(child) {
				return grouped.Compile(expr, fragments, ctx)
			}
		}
		return plain.Compile(expr, fragments, ctx)
	})
}

func defaultLeaves(def Definition, engine *render.Engine, values bool) (map[string]delegate.Renderer, error) {
	variable := basic.Identifier()
	if values {
		variable = basic.Lookup(valueFormatter(def), variable)
	}
	return map[string]delegate.Renderer{
		term.TypeVar:    variable,
		term.TypeString: basic.Literal(def.Strings),
		term.TypeNumber: basic.Literal(def.Literals),
		term.TypeBool:   basic.Literal(def.Literals),
		term.TypeNull:   basic.Const(def.Null),
		term.TypeCall:   basic.Call(engine, ", "),
	}, nil
}

// valueFormatter formats substituted values: strings with the dialect's
// string quoting, nil as the dialect's null, everything else as a literal.
func valueFormatter(def Definition) basic.Formatter {
	return func(value any) (string, error) {
		switch value.(type) {
		case nil:
			return def.Null, nil
		case string:
			return def.Strings(value)
		default:
			return def.Literals(value)
		}
	}
}
